// Package trial управляет одноразовым пробным периодом. Проба даёт уровень
// basic на три дня и может быть активирована не более одного раза за всю
// жизнь пользователя: non-nil trial_ends_at означает "проба использована",
// даже если срок давно вышел.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/services/access"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// DurationDays длительность пробного периода в днях.
const DurationDays = 3

// Машиночитаемые причины отказа активации.
const (
	ReasonAlreadyUsed        = "TRIAL_ALREADY_USED"
	ReasonSubscriptionActive = "SUBSCRIPTION_ACTIVE"
	ReasonNotFreeUser        = "NOT_FREE_USER"
)

// ActivationResult результат попытки активации пробного периода.
type ActivationResult struct {
	Activated bool      // Проба активирована этим вызовом
	Reason    string    // Причина отказа, пустая при успехе
	Tier      tier.Tier // Уровень, который даёт проба
	StartsAt  time.Time // Начало пробного периода
	EndsAt    time.Time // Конец пробного периода
}

// Status текущее состояние пробного периода пользователя.
type Status struct {
	CanActivateTrial   bool       `json:"can_activate_trial"`
	HasActiveTrial     bool       `json:"has_active_trial"`
	HasUsedTrial       bool       `json:"has_used_trial"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CurrentAccessLevel tier.Tier  `json:"current_access_level"`
}

// Repository определяет методы хранилища для пробных периодов.
type Repository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// ActivateTrial одноразово включает пробный период, условие "не более
	// одного раза" проверяется внутри самого UPDATE.
	ActivateTrial(ctx context.Context, userUID string, trialEndsAt, now time.Time) (bool, error)
}

// Service бизнес-логика пробных периодов.
type Service struct {
	repo  Repository
	cache access.Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache access.Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Activate пытается включить пробный период в момент now. Бизнес-отказы
// возвращаются значением с причиной; условие активации продублировано
// в SQL-условии UPDATE, поэтому конкурентный повтор не активирует пробу
// дважды.
func (s *Service) Activate(ctx context.Context, userUID string, now time.Time) (ActivationResult, error) {
	const op = "trial.Activate"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return ActivationResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if reason := denyReason(u, now); reason != "" {
		return ActivationResult{Reason: reason}, nil
	}

	endsAt := now.AddDate(0, 0, DurationDays)
	activated, err := s.repo.ActivateTrial(ctx, userUID, endsAt, now)
	if err != nil {
		return ActivationResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !activated {
		// Состояние изменилось между чтением и UPDATE, перечитываем причину.
		u, err = s.repo.GetUser(ctx, userUID)
		if err != nil {
			return ActivationResult{}, fmt.Errorf("%s: %w", op, err)
		}
		reason := denyReason(u, now)
		if reason == "" {
			reason = ReasonAlreadyUsed
		}
		return ActivationResult{Reason: reason}, nil
	}

	s.invalidateUser(ctx, userUID)
	s.log.Info("trial activated",
		slog.String("user_uid", userUID), slog.Time("ends_at", endsAt))

	return ActivationResult{
		Activated: true,
		Tier:      tier.Basic,
		StartsAt:  now,
		EndsAt:    endsAt,
	}, nil
}

// GetStatus возвращает состояние пробного периода, ничего не мутируя.
func (s *Service) GetStatus(ctx context.Context, userUID string, now time.Time) (Status, error) {
	const op = "trial.GetStatus"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	return Status{
		CanActivateTrial:   denyReason(u, now) == "",
		HasActiveTrial:     u.TrialEndsAt != nil && u.TrialEndsAt.After(now),
		HasUsedTrial:       u.HasUsedTrial(),
		TrialEndsAt:        u.TrialEndsAt,
		CurrentAccessLevel: access.EffectiveTier(u, now),
	}, nil
}

// denyReason возвращает причину, по которой проба недоступна, либо пустую
// строку. Порядок проверок фиксирован: использованная проба важнее активной
// подписки, та важнее небесплатного уровня.
func denyReason(u *models.User, now time.Time) string {
	switch {
	case u.HasUsedTrial():
		return ReasonAlreadyUsed
	case u.HasActiveSubscription(now):
		return ReasonSubscriptionActive
	case u.AccessLevel != tier.Free:
		return ReasonNotFreeUser
	default:
		return ""
	}
}

func (s *Service) invalidateUser(ctx context.Context, userUID string) {
	cacheKey := access.UserCacheKey(userUID)
	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.log.Warn("failed to invalidate user cache", slog.String("key", cacheKey), sl.Err(err))
	}
}
