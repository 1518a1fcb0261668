// Package storage реализует хранилище данных на основе PostgreSQL
// для движка доступа и монетизации. Предоставляет методы работы
// с пользователями, промокодами, историей платежей и элементами контента.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища, проверяются через errors.Is.
var (
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrContentNotFound элемент контента не найден.
	ErrContentNotFound = errors.New("content item not found")
	// ErrPromoNotFound промокод не найден.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoExhausted лимит погашений промокода исчерпан.
	ErrPromoExhausted = errors.New("promo code exhausted")
	// ErrPromoAlreadyRedeemed пользователь уже погасил этот промокод.
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed by user")
	// ErrPaymentNotFound запись платежа не найдена.
	ErrPaymentNotFound = errors.New("payment record not found")
	// ErrDuplicateTransaction платёж с таким transaction id уже зафиксирован.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// Close закрывает соединение с базой данных.
func (s *Storage) Close() error {
	return s.DB.Close()
}
