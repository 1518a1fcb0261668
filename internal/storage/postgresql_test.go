package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

func TestUsers_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	uid, err := storage.CreateUser(context.Background(), models.User{
		Username:    "student1",
		Email:       "student1@example.com",
		Role:        tier.RoleStudent,
		AccessLevel: tier.Free,
	})
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	u, err := storage.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "student1", u.Username)
	assert.Equal(t, tier.RoleStudent, u.Role)
	assert.Equal(t, tier.Free, u.AccessLevel)
	assert.Nil(t, u.SubscriptionEndsAt)
	assert.Nil(t, u.TrialEndsAt)

	byName, err := storage.GetUserByUsername(context.Background(), "student1")
	require.NoError(t, err)
	assert.Equal(t, uid, byName.UID)

	_, err = storage.GetUser(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestActivateTrial_OneShot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	endsAt := now.AddDate(0, 0, 3)
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	activated, err := storage.ActivateTrial(context.Background(), uid, endsAt, now)
	require.NoError(t, err)
	assert.True(t, activated)

	u, err := storage.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, tier.Basic, u.AccessLevel)
	require.NotNil(t, u.TrialEndsAt)

	// Повторная активация отклоняется самим UPDATE.
	activated, err = storage.ActivateTrial(context.Background(), uid, endsAt.AddDate(0, 0, 3), now)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestActivateTrial_RejectsActiveSubscriber(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)
	factory.SetSubscription(t, uid, tier.Basic, now.AddDate(0, 1, 0))

	activated, err := storage.ActivateTrial(context.Background(), uid, now.AddDate(0, 0, 3), now)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestPromo_FindByCode_CaseInsensitive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	promoData := GetTestPromoData()
	promoData.ApplicableTiers = []tier.Tier{tier.Basic, tier.Premium}
	id := factory.CreatePromoCode(t, promoData)

	found, err := storage.FindPromoCodeByCode(context.Background(), "test10")
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "TEST10", found.Code)
	assert.Equal(t, []tier.Tier{tier.Basic, tier.Premium}, found.ApplicableTiers)

	_, err = storage.FindPromoCodeByCode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPromoNotFound)
}

func TestRedeemPromo_Exhaustion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	promoData := GetTestPromoData()
	promoData.MaxRedemptions = 2
	id := factory.CreatePromoCode(t, promoData)

	firstUser := factory.CreateUser(t, tier.RoleStudent, tier.Free)
	secondUser := factory.CreateUser(t, tier.RoleStudent, tier.Free)
	thirdUser := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	require.NoError(t, storage.RedeemPromo(context.Background(), id, firstUser, now))
	require.NoError(t, storage.RedeemPromo(context.Background(), id, secondUser, now))

	err := storage.RedeemPromo(context.Background(), id, thirdUser, now)
	assert.ErrorIs(t, err, ErrPromoExhausted)

	promo, err := storage.GetPromoCode(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, promo.UsageCount)
}

func TestRedeemPromo_OnePerUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	id := factory.CreatePromoCode(t, GetTestPromoData())
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	require.NoError(t, storage.RedeemPromo(context.Background(), id, uid, now))

	redeemed, err := storage.HasRedeemed(context.Background(), id, uid)
	require.NoError(t, err)
	assert.True(t, redeemed)

	err = storage.RedeemPromo(context.Background(), id, uid, now)
	assert.ErrorIs(t, err, ErrPromoAlreadyRedeemed)

	// Отклонённое повторное погашение не инкрементирует счётчик.
	promo, err := storage.GetPromoCode(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsageCount)
}

func TestCommitPurchase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC().Truncate(time.Second)
	endsAt := now.AddDate(0, 0, 30)
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	u, err := storage.CommitPurchase(context.Background(), CommitPurchaseParams{
		UserUID:            uid,
		Amount:             9.99,
		FromTier:           tier.Free,
		ToTier:             tier.Basic,
		Method:             "paypal",
		TransactionID:      "tx-commit-1",
		PayerRef:           "payer-1",
		SubscriptionEndsAt: endsAt,
		Now:                now,
	})
	require.NoError(t, err)
	assert.Equal(t, tier.Basic, u.AccessLevel)
	require.NotNil(t, u.SubscriptionEndsAt)
	assert.WithinDuration(t, endsAt, *u.SubscriptionEndsAt, time.Second)
	assert.InDelta(t, 9.99, u.PaymentAmount, 1e-9)

	record, err := storage.FindPaymentByTransactionID(context.Background(), "tx-commit-1")
	require.NoError(t, err)
	assert.Equal(t, uid, record.UserUID)
	assert.Equal(t, tier.Free, record.FromTier)
	assert.Equal(t, tier.Basic, record.ToTier)
	assert.InDelta(t, 9.99, record.Amount, 1e-9)
}

// Повтор того же transaction id не добавляет запись и не двигает срок.
func TestCommitPurchase_DuplicateTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC().Truncate(time.Second)
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	params := CommitPurchaseParams{
		UserUID:            uid,
		Amount:             9.99,
		FromTier:           tier.Free,
		ToTier:             tier.Basic,
		Method:             "paypal",
		TransactionID:      "tx-dup-1",
		PayerRef:           "payer-1",
		SubscriptionEndsAt: now.AddDate(0, 0, 30),
		Now:                now,
	}

	_, err := storage.CommitPurchase(context.Background(), params)
	require.NoError(t, err)

	params.SubscriptionEndsAt = now.AddDate(0, 0, 60)
	_, err = storage.CommitPurchase(context.Background(), params)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	var count int
	require.NoError(t, storage.DB.QueryRow(
		"SELECT COUNT(*) FROM payments WHERE transaction_id = 'tx-dup-1'").Scan(&count))
	assert.Equal(t, 1, count)

	u, err := storage.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), *u.SubscriptionEndsAt, time.Second)
	assert.InDelta(t, 9.99, u.PaymentAmount, 1e-9)
}

// Новая покупка заменяет срок подписки, а не продлевает его.
func TestCommitPurchase_ReplacesSubscriptionEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC().Truncate(time.Second)
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)
	factory.SetSubscription(t, uid, tier.Basic, now.AddDate(0, 0, 300))

	u, err := storage.CommitPurchase(context.Background(), CommitPurchaseParams{
		UserUID:            uid,
		Amount:             75.00,
		FromTier:           tier.Basic,
		ToTier:             tier.Premium,
		Method:             "paypal",
		TransactionID:      "tx-upgrade-1",
		SubscriptionEndsAt: now.AddDate(0, 0, 365),
		Now:                now,
	})
	require.NoError(t, err)
	assert.Equal(t, tier.Premium, u.AccessLevel)
	assert.WithinDuration(t, now.AddDate(0, 0, 365), *u.SubscriptionEndsAt, time.Second)
}

func TestListPayments_NewestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC().Truncate(time.Second)
	uid := factory.CreateUser(t, tier.RoleStudent, tier.Free)

	for i, txID := range []string{"tx-list-1", "tx-list-2"} {
		_, err := storage.CommitPurchase(context.Background(), CommitPurchaseParams{
			UserUID:            uid,
			Amount:             9.99,
			FromTier:           tier.Free,
			ToTier:             tier.Basic,
			Method:             "paypal",
			TransactionID:      txID,
			SubscriptionEndsAt: now.AddDate(0, 0, 30*(i+1)),
			Now:                now,
		})
		require.NoError(t, err)
	}

	records, err := storage.ListPayments(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "tx-list-2", records[0].TransactionID)
	assert.Equal(t, "tx-list-1", records[1].TransactionID)
}

func TestContentItems_GetWithQuestions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	id := factory.CreateContentItem(t, models.ContentItem{
		Title:         "Premium quiz",
		DescriptionEN: "english text",
		DescriptionRO: "romanian text",
		DescriptionRU: "russian text",
		Questions: []models.Question{
			{Text: "q1", Options: []string{"a", "b"}, Answer: 0},
			{Text: "q2", Options: []string{"c", "d"}, Answer: 1},
		},
		RequiredTier: tier.Premium,
	})

	item, err := storage.GetContentItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Premium quiz", item.Title)
	assert.Equal(t, tier.Premium, item.RequiredTier)
	require.Len(t, item.Questions, 2)
	assert.Equal(t, "q1", item.Questions[0].Text)
	assert.Equal(t, []string{"a", "b"}, item.Questions[0].Options)

	_, err = storage.GetContentItem(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrContentNotFound)
}
