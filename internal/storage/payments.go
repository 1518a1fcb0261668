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

// CommitPurchaseParams параметры фиксации оплаченной покупки.
type CommitPurchaseParams struct {
	UserUID            string
	Amount             float64
	FromTier           tier.Tier
	ToTier             tier.Tier
	Method             string
	TransactionID      string
	PayerRef           string
	SubscriptionEndsAt time.Time
	Now                time.Time
}

// FindPaymentByTransactionID возвращает запись платежа по transaction id шлюза.
func (s *Storage) FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	const op = "storage.FindPaymentByTransactionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, amount, from_tier, to_tier, method,
			      transaction_id, payer_ref, created_at
			  FROM payments
			  WHERE transaction_id = $1`
	row := s.DB.QueryRowContext(ctx, query, transactionID)

	record, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return record, nil
}

// CommitPurchase фиксирует успешный платёж: добавляет запись в append-only
// историю и переводит пользователя на приобретённый уровень в одной
// транзакции. Повторная фиксация того же transaction id (ретрай после сбоя)
// не изменяет состояние и возвращает ErrDuplicateTransaction — уникальный
// индекс по transaction_id служит ключом идемпотентности.
//
// Новое значение subscription_ends_at заменяет прежнее, а не продлевает его:
// продление, купленное до истечения старой подписки, сроков не суммирует.
func (s *Storage) CommitPurchase(ctx context.Context, params CommitPurchaseParams) (*models.User, error) {
	const op = "storage.CommitPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO payments (user_uid, amount, from_tier, to_tier, method,
			transaction_id, payer_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING`,
		params.UserUID, params.Amount, string(params.FromTier), string(params.ToTier),
		params.Method, params.TransactionID, params.PayerRef, params.Now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateTransaction)
	}

	query := `UPDATE users
			  SET access_level = $1,
			      subscription_ends_at = $2,
			      payment_amount = payment_amount + $3
			  WHERE uid = $4
			  RETURNING uid, username, email, role, access_level, subscription_ends_at,
			      trial_ends_at, payment_amount, created_at`
	row := tx.QueryRowContext(ctx, query,
		string(params.ToTier), params.SubscriptionEndsAt, params.Amount, params.UserUID)

	u := &models.User{}
	var role, accessLevel string
	var subscriptionEndsAt, trialEndsAt sql.NullTime
	if err := row.Scan(&u.UID, &u.Username, &u.Email, &role, &accessLevel,
		&subscriptionEndsAt, &trialEndsAt, &u.PaymentAmount, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Role = tier.ParseRole(role)
	u.AccessLevel = tier.Parse(accessLevel)
	if subscriptionEndsAt.Valid {
		u.SubscriptionEndsAt = &subscriptionEndsAt.Time
	}
	if trialEndsAt.Valid {
		u.TrialEndsAt = &trialEndsAt.Time
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListPayments возвращает историю платежей пользователя от новых к старым.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, amount, from_tier, to_tier, method,
			      transaction_id, payer_ref, created_at
			  FROM payments
			  WHERE user_uid = $1
			  ORDER BY id DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentRecord
	for rows.Next() {
		record := &models.PaymentRecord{}
		var fromTier, toTier string
		if err := rows.Scan(&record.ID, &record.UserUID, &record.Amount, &fromTier,
			&toTier, &record.Method, &record.TransactionID, &record.PayerRef,
			&record.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		record.FromTier = tier.Parse(fromTier)
		record.ToTier = tier.Parse(toTier)
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanPayment(row *sql.Row) (*models.PaymentRecord, error) {
	record := &models.PaymentRecord{}
	var fromTier, toTier string
	if err := row.Scan(&record.ID, &record.UserUID, &record.Amount, &fromTier,
		&toTier, &record.Method, &record.TransactionID, &record.PayerRef,
		&record.CreatedAt); err != nil {
		return nil, err
	}
	record.FromTier = tier.Parse(fromTier)
	record.ToTier = tier.Parse(toTier)
	return record, nil
}
