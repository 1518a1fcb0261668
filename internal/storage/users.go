package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, username, email, role, access_level, subscription_ends_at,
			      trial_ends_at, payment_amount, created_at
			  FROM users
			  WHERE uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, username, email, role, access_level, subscription_ends_at,
			      trial_ends_at, payment_amount, created_at
			  FROM users
			  WHERE username = $1`
	row := s.DB.QueryRowContext(ctx, query, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (username, email, role, access_level)
			  VALUES ($1, $2, $3, $4)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, string(user.Role), string(user.AccessLevel)).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// ActivateTrial одноразово включает пробный период. Условие trial_ends_at IS NULL
// входит в сам UPDATE, поэтому инвариант "проба активируется не более одного
// раза" выдерживается и при конкурентных запросах. Возвращает true, если
// запись была изменена.
func (s *Storage) ActivateTrial(ctx context.Context, userUID string, trialEndsAt, now time.Time) (bool, error) {
	const op = "storage.ActivateTrial"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET access_level = $1, trial_ends_at = $2
			  WHERE uid = $3
			    AND trial_ends_at IS NULL
			    AND access_level = $4
			    AND (subscription_ends_at IS NULL OR subscription_ends_at <= $5)`
	result, err := s.DB.ExecContext(ctx, query,
		string(tier.Basic), trialEndsAt, userUID, string(tier.Free), now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var role, accessLevel string
	var subscriptionEndsAt, trialEndsAt sql.NullTime

	if err := row.Scan(&u.UID, &u.Username, &u.Email, &role, &accessLevel,
		&subscriptionEndsAt, &trialEndsAt, &u.PaymentAmount, &u.CreatedAt); err != nil {
		return nil, err
	}

	u.Role = tier.ParseRole(role)
	u.AccessLevel = tier.Parse(accessLevel)
	if subscriptionEndsAt.Valid {
		u.SubscriptionEndsAt = &subscriptionEndsAt.Time
	}
	if trialEndsAt.Valid {
		u.TrialEndsAt = &trialEndsAt.Time
	}
	return u, nil
}
