package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// GetContentItem возвращает элемент контента по его ID.
func (s *Storage) GetContentItem(ctx context.Context, id int) (*models.ContentItem, error) {
	const op = "storage.GetContentItem"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, title, description_en, description_ro, description_ru,
			      questions, required_tier
			  FROM content_items
			  WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	item := &models.ContentItem{}
	var questionsRaw []byte
	var requiredTier string
	if err := row.Scan(&item.ID, &item.Title, &item.DescriptionEN, &item.DescriptionRO,
		&item.DescriptionRU, &questionsRaw, &requiredTier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrContentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(questionsRaw) > 0 {
		if err := json.Unmarshal(questionsRaw, &item.Questions); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	item.RequiredTier = tier.Parse(requiredTier)
	return item, nil
}
