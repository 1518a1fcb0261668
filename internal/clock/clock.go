// Package clock предоставляет внедряемый источник текущего времени.
// Вся бизнес-логика получает "сейчас" одним значением на операцию и никогда
// не читает системные часы напрямую, что делает проверки границ истечения
// детерминированными в тестах.
package clock

import "time"

// Clock источник текущего момента времени.
type Clock interface {
	Now() time.Time
}

// Real системные часы, всегда в UTC.
type Real struct{}

// Now возвращает текущее время в UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed часы с фиксированным моментом, используются в тестах.
type Fixed struct {
	Instant time.Time
}

// NewFixed создаёт фиксированные часы на заданный момент.
func NewFixed(t time.Time) Fixed {
	return Fixed{Instant: t}
}

// Now возвращает зафиксированный момент.
func (f Fixed) Now() time.Time {
	return f.Instant
}
