package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "короткий текст возвращается без изменений",
			text:     "short description",
			expected: "short description",
		},
		{
			name:     "пустой текст остаётся пустым",
			text:     "",
			expected: "",
		},
		{
			name:     "текст ровно в лимит не обрезается",
			text:     strings.Repeat("a", PreviewLimit),
			expected: strings.Repeat("a", PreviewLimit),
		},
		{
			name:     "длинный текст обрезается с многоточием",
			text:     strings.Repeat("a", PreviewLimit+1),
			expected: strings.Repeat("a", PreviewLimit) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Preview(tt.text))
		})
	}
}

// Обрезка идёт по рунам: кириллический текст не получает разорванных
// многобайтовых символов на границе превью.
func TestPreview_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("я", PreviewLimit+50)
	got := Preview(text)

	runes := []rune(got)
	assert.Len(t, runes, PreviewLimit+3)
	assert.Equal(t, strings.Repeat("я", PreviewLimit)+"...", got)
}

func TestGate_FullAccess(t *testing.T) {
	item := &models.ContentItem{
		ID:            7,
		Title:         "Grammar basics",
		DescriptionEN: strings.Repeat("e", 600),
		DescriptionRO: strings.Repeat("r", 600),
		DescriptionRU: strings.Repeat("u", 600),
		Questions: []models.Question{
			{Text: "q1", Options: []string{"a", "b"}, Answer: 0},
		},
		RequiredTier: tier.Basic,
	}

	got := Gate(item, tier.Premium)

	assert.True(t, got.HasFullContentAccess)
	assert.Equal(t, item.DescriptionEN, got.DescriptionEN)
	assert.Equal(t, item.DescriptionRO, got.DescriptionRO)
	assert.Equal(t, item.DescriptionRU, got.DescriptionRU)
	assert.Equal(t, item.Questions, got.Questions)
	assert.True(t, got.AccessInfo.HasFullAccess)
	assert.Equal(t, tier.Premium, got.AccessInfo.UserAccessLevel)
	assert.Equal(t, tier.Basic, got.AccessInfo.RequiredTier)
}

func TestGate_InsufficientTier(t *testing.T) {
	item := &models.ContentItem{
		ID:            7,
		Title:         "Premium quiz",
		DescriptionEN: strings.Repeat("e", 600),
		DescriptionRO: "short ro",
		DescriptionRU: strings.Repeat("u", 600),
		Questions: []models.Question{
			{Text: "q1", Options: []string{"a", "b"}, Answer: 0},
			{Text: "q2", Options: []string{"c", "d"}, Answer: 1},
		},
		RequiredTier: tier.Premium,
	}

	got := Gate(item, tier.Basic)

	assert.False(t, got.HasFullContentAccess)
	assert.Equal(t, strings.Repeat("e", PreviewLimit)+"...", got.DescriptionEN)
	// Короткий вариант остаётся целиком, обрезается только длинный.
	assert.Equal(t, "short ro", got.DescriptionRO)
	assert.Equal(t, strings.Repeat("u", PreviewLimit)+"...", got.DescriptionRU)
	// Вопросы опустошаются целиком, а не частично.
	assert.NotNil(t, got.Questions)
	assert.Empty(t, got.Questions)
	assert.Equal(t, "Premium quiz", got.Title)
	assert.Equal(t, tier.Basic, got.AccessInfo.UserAccessLevel)
	assert.Equal(t, tier.Premium, got.AccessInfo.RequiredTier)
}

func TestGate_EqualTierGrantsAccess(t *testing.T) {
	item := &models.ContentItem{RequiredTier: tier.Basic, Questions: []models.Question{{Text: "q"}}}

	got := Gate(item, tier.Basic)
	assert.True(t, got.HasFullContentAccess)
	assert.Len(t, got.Questions, 1)
}

// Nil элемент не роняет гейтинг: результат полностью урезан, доступ закрыт.
func TestGate_NilItem(t *testing.T) {
	got := Gate(nil, tier.Premium)

	assert.False(t, got.HasFullContentAccess)
	assert.False(t, got.AccessInfo.HasFullAccess)
	assert.Equal(t, tier.Premium, got.AccessInfo.UserAccessLevel)
	assert.Equal(t, tier.Top(), got.AccessInfo.RequiredTier)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.DescriptionEN)
	assert.NotNil(t, got.Questions)
	assert.Empty(t, got.Questions)
}

// Гейтинг идемпотентен: одинаковые входы дают одинаковый результат.
func TestGate_Deterministic(t *testing.T) {
	item := &models.ContentItem{
		ID:            1,
		DescriptionEN: strings.Repeat("x", 900),
		Questions:     []models.Question{{Text: "q"}},
		RequiredTier:  tier.Premium,
	}

	first := Gate(item, tier.Free)
	second := Gate(item, tier.Free)
	assert.Equal(t, first, second)
}
