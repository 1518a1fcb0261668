package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// FindPromoCodeByCode возвращает промокод по коду без учёта регистра.
func (s *Storage) FindPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.FindPromoCodeByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, code, discount_type, discount_value, valid_from, valid_until,
			      max_redemptions, usage_count, one_per_user, applicable_tiers, created_at
			  FROM promo_codes
			  WHERE LOWER(code) = LOWER($1)`
	row := s.DB.QueryRowContext(ctx, query, code)

	promo, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return promo, nil
}

// GetPromoCode возвращает промокод по его ID.
func (s *Storage) GetPromoCode(ctx context.Context, id int) (*models.PromoCode, error) {
	const op = "storage.GetPromoCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, code, discount_type, discount_value, valid_from, valid_until,
			      max_redemptions, usage_count, one_per_user, applicable_tiers, created_at
			  FROM promo_codes
			  WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	promo, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrPromoNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return promo, nil
}

// CreatePromoCode сохраняет новый промокод и возвращает его ID.
func (s *Storage) CreatePromoCode(ctx context.Context, promo models.PromoCode) (int, error) {
	const op = "storage.CreatePromoCode"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO promo_codes (code, discount_type, discount_value, valid_from,
			      valid_until, max_redemptions, one_per_user, applicable_tiers)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	var newID int
	if err := s.DB.QueryRowContext(ctx, query,
		promo.Code, promo.DiscountType, promo.DiscountValue, promo.ValidFrom,
		promo.ValidUntil, promo.MaxRedemptions, promo.OnePerUser,
		joinTiers(promo.ApplicableTiers)).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// HasRedeemed сообщает, гасил ли пользователь этот промокод ранее.
func (s *Storage) HasRedeemed(ctx context.Context, promoID int, userUID string) (bool, error) {
	const op = "storage.HasRedeemed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS(SELECT 1 FROM promo_redemptions WHERE promo_id = $1 AND user_uid = $2)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, promoID, userUID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// RedeemPromo атомарно гасит промокод для пользователя. Инкремент счётчика
// выполняется условно (usage_count < max_redemptions) в одном UPDATE, а не
// через чтение-запись: два параллельных погашения одного кода сериализуются
// блокировкой строки промокода внутри транзакции. Для one_per_user кодов
// повторное погашение тем же пользователем отклоняется в той же транзакции.
func (s *Storage) RedeemPromo(ctx context.Context, promoID int, userUID string, now time.Time) error {
	const op = "storage.RedeemPromo"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE promo_codes
		SET usage_count = usage_count + 1
		WHERE id = $1
		  AND (max_redemptions = 0 OR usage_count < max_redemptions)`, promoID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPromoExhausted)
	}

	// Строка промокода уже заблокирована UPDATE выше, поэтому проверка
	// NOT EXISTS и вставка не гоняются с параллельным погашением того же кода.
	result, err = tx.ExecContext(ctx, `
		INSERT INTO promo_redemptions (promo_id, user_uid, redeemed_at)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM promo_codes p
			JOIN promo_redemptions r ON r.promo_id = p.id AND r.user_uid = $2
			WHERE p.id = $1 AND p.one_per_user
		)`, promoID, userUID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrPromoAlreadyRedeemed)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanPromo(row *sql.Row) (*models.PromoCode, error) {
	promo := &models.PromoCode{}
	var applicableTiers string

	if err := row.Scan(&promo.ID, &promo.Code, &promo.DiscountType, &promo.DiscountValue,
		&promo.ValidFrom, &promo.ValidUntil, &promo.MaxRedemptions, &promo.UsageCount,
		&promo.OnePerUser, &applicableTiers, &promo.CreatedAt); err != nil {
		return nil, err
	}
	promo.ApplicableTiers = splitTiers(applicableTiers)
	return promo, nil
}

func joinTiers(tiers []tier.Tier) string {
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

func splitTiers(raw string) []tier.Tier {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tiers := make([]tier.Tier, 0, len(parts))
	for _, p := range parts {
		tiers = append(tiers, tier.Parse(strings.TrimSpace(p)))
	}
	return tiers
}
