// Package access вычисляет эффективный уровень доступа пользователя.
//
// Хранимое поле access_level — лишь кеш: истечение подписки и пробного
// периода применяется лениво, в момент чтения, и только здесь. Любой код,
// принимающий решения об авторизации по сырому полю, ошибётся; авторизация
// всегда идёт через EffectiveTier / HasAccess.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

const userCacheTTL = 5 * time.Minute

// UserCacheKey возвращает ключ кеша для записи пользователя. Сервисы,
// мутирующие пользователя, инвалидируют этот же ключ.
func UserCacheKey(userUID string) string {
	return fmt.Sprintf("user:%s", userUID)
}

// EffectiveTier возвращает уровень, реально действующий в момент now.
//
// Порядок проверок: роль teacher/admin даёт максимальный уровень в обход
// всего остального; истёкшая подписка и истёкшая проба без активной подписки
// понижают до free; иначе действует хранимый уровень. Функция чистая и
// никогда не возвращает ошибку: nil и некорректные поля трактуются как free.
func EffectiveTier(u *models.User, now time.Time) tier.Tier {
	if u == nil {
		return tier.Free
	}
	if tier.RoleHasFullAccess(u.Role) {
		return tier.Top()
	}
	if subscriptionLapsed(u, now) {
		return tier.Free
	}
	if u.TrialEndsAt != nil && u.TrialEndsAt.Before(now) && noSubscriptionCover(u, now) {
		return tier.Free
	}
	return u.AccessLevel
}

// subscriptionLapsed: подписка была и уже истекла. В момент now == ends_at
// подписка ещё не истекла.
func subscriptionLapsed(u *models.User, now time.Time) bool {
	return u.SubscriptionEndsAt != nil && u.SubscriptionEndsAt.Before(now)
}

// noSubscriptionCover — точное отрицание subscriptionLapsed плюс случай
// отсутствия подписки: истёкшая проба понижает до free, только если подписка
// не покрывает момент now. На границе now == ends_at хранимый уровень действует.
func noSubscriptionCover(u *models.User, now time.Time) bool {
	return u.SubscriptionEndsAt == nil || subscriptionLapsed(u, now)
}

// HasAccess сообщает, достаточен ли эффективный уровень пользователя
// для требуемого уровня. Чистая функция без побочных эффектов.
func HasAccess(u *models.User, required tier.Tier, now time.Time) bool {
	return tier.Rank(EffectiveTier(u, now)) >= tier.Rank(required)
}

// UserRepository определяет методы чтения пользователей из хранилища.
type UserRepository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Service загружает пользователей через кеш и вычисляет их эффективный уровень.
type Service struct {
	repo  UserRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetUser возвращает пользователя, используя кеш или репозиторий.
func (s *Service) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	var cached models.User
	cacheKey := UserCacheKey(userUID)
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, u, userCacheTTL); err != nil {
		s.log.Warn("failed to cache user", slog.String("key", cacheKey), sl.Err(err))
	}
	return u, nil
}

// EffectiveTierFor загружает пользователя и вычисляет его эффективный уровень.
// Отсутствующий или нечитаемый пользователь деградирует до free: отказать
// в лишнем контенте безопаснее, чем раскрыть его.
func (s *Service) EffectiveTierFor(ctx context.Context, userUID string, now time.Time) tier.Tier {
	u, err := s.GetUser(ctx, userUID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.log.Warn("failed to load user for tier evaluation, degrading to free",
				slog.String("user_uid", userUID), sl.Err(err))
		}
		return tier.Free
	}
	return EffectiveTier(u, now)
}

// InvalidateUser сбрасывает кеш пользователя после мутации.
func (s *Service) InvalidateUser(ctx context.Context, userUID string) {
	cacheKey := UserCacheKey(userUID)
	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.log.Warn("failed to invalidate user cache", slog.String("key", cacheKey), sl.Err(err))
	}
}
