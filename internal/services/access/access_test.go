package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestEffectiveTier(t *testing.T) {
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		user     *models.User
		expected tier.Tier
	}{
		{
			name:     "nil пользователь деградирует до free",
			user:     nil,
			expected: tier.Free,
		},
		{
			name: "admin получает максимальный уровень при любом хранимом поле",
			user: &models.User{
				Role:               tier.RoleAdmin,
				AccessLevel:        tier.Free,
				SubscriptionEndsAt: timePtr(yesterday),
			},
			expected: tier.Premium,
		},
		{
			name: "teacher получает максимальный уровень",
			user: &models.User{
				Role:        tier.RoleTeacher,
				AccessLevel: tier.Free,
			},
			expected: tier.Premium,
		},
		{
			name: "истёкшая подписка понижает до free",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Basic,
				SubscriptionEndsAt: timePtr(yesterday),
			},
			expected: tier.Free,
		},
		{
			name: "активная подписка сохраняет хранимый уровень",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Premium,
				SubscriptionEndsAt: timePtr(tomorrow),
			},
			expected: tier.Premium,
		},
		{
			name: "истёкшая проба без подписки понижает до free",
			user: &models.User{
				Role:        tier.RoleStudent,
				AccessLevel: tier.Basic,
				TrialEndsAt: timePtr(yesterday),
			},
			expected: tier.Free,
		},
		{
			name: "активная проба сохраняет basic",
			user: &models.User{
				Role:        tier.RoleStudent,
				AccessLevel: tier.Basic,
				TrialEndsAt: timePtr(tomorrow),
			},
			expected: tier.Basic,
		},
		{
			name: "истёкшая проба не мешает активной подписке",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Premium,
				TrialEndsAt:        timePtr(yesterday),
				SubscriptionEndsAt: timePtr(tomorrow),
			},
			expected: tier.Premium,
		},
		{
			name: "student без дат сохраняет хранимый уровень",
			user: &models.User{
				Role:        tier.RoleStudent,
				AccessLevel: tier.Free,
			},
			expected: tier.Free,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveTier(tt.user, now))
		})
	}
}

// В граничный момент now == subscription_ends_at подписка ещё не истекла:
// решение одинаково во всех шагах оценки, включая проверку после истёкшей пробы.
func TestEffectiveTier_SubscriptionBoundaryInstant(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		at       time.Time
		expected tier.Tier
	}{
		{
			name: "подписка, истекающая ровно в now, ещё действует",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Premium,
				SubscriptionEndsAt: timePtr(now),
			},
			at:       now,
			expected: tier.Premium,
		},
		{
			name: "истёкшая проба не понижает, пока подписка покрывает граничный момент",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Basic,
				SubscriptionEndsAt: timePtr(now),
				TrialEndsAt:        timePtr(now.AddDate(0, 0, -1)),
			},
			at:       now,
			expected: tier.Basic,
		},
		{
			name: "наносекундой позже граничного момента подписка истекла",
			user: &models.User{
				Role:               tier.RoleStudent,
				AccessLevel:        tier.Basic,
				SubscriptionEndsAt: timePtr(now),
				TrialEndsAt:        timePtr(now.AddDate(0, 0, -1)),
			},
			at:       now.Add(time.Nanosecond),
			expected: tier.Free,
		},
		{
			name: "проба, истекающая ровно в now, ещё действует",
			user: &models.User{
				Role:        tier.RoleStudent,
				AccessLevel: tier.Basic,
				TrialEndsAt: timePtr(now),
			},
			at:       now,
			expected: tier.Basic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveTier(tt.user, tt.at))
		})
	}
}

// Однажды истёкший уровень остаётся free для любого более позднего момента,
// пока не случится новая покупка или проба.
func TestEffectiveTier_StaysFreeAfterExpiry(t *testing.T) {
	u := &models.User{
		Role:               tier.RoleStudent,
		AccessLevel:        tier.Premium,
		SubscriptionEndsAt: timePtr(now.AddDate(0, 0, -1)),
	}

	for _, offset := range []time.Duration{0, time.Hour, 24 * time.Hour, 24 * 365 * time.Hour} {
		assert.Equal(t, tier.Free, EffectiveTier(u, now.Add(offset)))
	}
}

func TestHasAccess(t *testing.T) {
	u := &models.User{
		Role:               tier.RoleStudent,
		AccessLevel:        tier.Basic,
		SubscriptionEndsAt: timePtr(now.AddDate(0, 0, -1)),
	}

	// Подписка истекла вчера: эффективный уровень free.
	assert.Equal(t, tier.Free, EffectiveTier(u, now))
	assert.True(t, HasAccess(u, tier.Free, now))
	assert.False(t, HasAccess(u, tier.Basic, now))
	assert.False(t, HasAccess(u, tier.Premium, now))
}

func TestHasAccess_MatchesRankComparison(t *testing.T) {
	users := []*models.User{
		nil,
		{Role: tier.RoleStudent, AccessLevel: tier.Basic},
		{Role: tier.RoleAdmin, AccessLevel: tier.Free},
		{Role: tier.RoleStudent, AccessLevel: tier.Premium, SubscriptionEndsAt: timePtr(now.AddDate(0, 0, -2))},
	}
	required := []tier.Tier{tier.Free, tier.Basic, tier.Premium}

	for _, u := range users {
		for _, req := range required {
			expected := tier.Rank(EffectiveTier(u, now)) >= tier.Rank(req)
			assert.Equal(t, expected, HasAccess(u, req, now))
		}
	}
}

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_GetUser_CacheMiss(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	u := &models.User{UID: "uid-1", Role: tier.RoleStudent, AccessLevel: tier.Basic}

	cache.On("Get", mock.Anything, "user:uid-1", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, "uid-1").Return(u, nil)
	cache.On("Set", mock.Anything, "user:uid-1", u, mock.Anything).Return(nil)

	svc := New(repo, cache, newTestLogger())
	got, err := svc.GetUser(context.Background(), "uid-1")

	assert.NoError(t, err)
	assert.Equal(t, u, got)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestService_EffectiveTierFor_UserNotFound(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	cache.On("Get", mock.Anything, "user:ghost", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, "ghost").Return(nil, storage.ErrUserNotFound)

	svc := New(repo, cache, newTestLogger())
	assert.Equal(t, tier.Free, svc.EffectiveTierFor(context.Background(), "ghost", now))
}

func TestService_EffectiveTierFor_StorageError(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	cache.On("Get", mock.Anything, "user:uid-1", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, "uid-1").Return(nil, errors.New("db unreachable"))

	svc := New(repo, cache, newTestLogger())
	// Любой сбой деградирует до free вместо ошибки.
	assert.Equal(t, tier.Free, svc.EffectiveTierFor(context.Background(), "uid-1", now))
}

func TestService_InvalidateUser(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	cache.On("Invalidate", mock.Anything, "user:uid-1").Return(nil)

	svc := New(repo, cache, newTestLogger())
	svc.InvalidateUser(context.Background(), "uid-1")
	cache.AssertExpectations(t)
}
