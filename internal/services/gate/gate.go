// Package gate редактирует полезную нагрузку контента по эффективному уровню
// доступа. Гейтинг чистый и идемпотентный: одинаковые входы дают байтово
// одинаковый результат.
package gate

import (
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// PreviewLimit максимальная длина превью длинного текста в символах.
const PreviewLimit = 400

const previewEllipsis = "..."

// Gate возвращает контент, урезанный до превью, если эффективного уровня
// недостаточно. Длинные тексты обрезаются до первых 400 символов с маркером
// многоточия отдельно для каждого языкового варианта. Списки вопросов
// заменяются пустым списком целиком: частичное раскрытие структурированных
// данных недопустимо. Сведения о решении доступа прикладываются всегда.
// Nil элемент даёт полностью урезанный результат: гейтинг никогда не падает,
// при отсутствующих данных деградирует к самому безопасному варианту.
func Gate(item *models.ContentItem, effective tier.Tier) models.GatedContent {
	if item == nil {
		return models.GatedContent{
			Questions: []models.Question{},
			AccessInfo: models.AccessInfo{
				UserAccessLevel: effective,
				RequiredTier:    tier.Top(),
			},
		}
	}

	fullAccess := tier.Rank(effective) >= tier.Rank(item.RequiredTier)

	result := models.GatedContent{
		ID:                   item.ID,
		Title:                item.Title,
		DescriptionEN:        item.DescriptionEN,
		DescriptionRO:        item.DescriptionRO,
		DescriptionRU:        item.DescriptionRU,
		Questions:            item.Questions,
		HasFullContentAccess: fullAccess,
		AccessInfo: models.AccessInfo{
			HasFullAccess:   fullAccess,
			UserAccessLevel: effective,
			RequiredTier:    item.RequiredTier,
		},
	}

	if !fullAccess {
		result.DescriptionEN = Preview(item.DescriptionEN)
		result.DescriptionRO = Preview(item.DescriptionRO)
		result.DescriptionRU = Preview(item.DescriptionRU)
		result.Questions = []models.Question{}
	}
	return result
}

// Preview детерминированно обрезает текст до лимита превью, добавляя маркер
// многоточия. Обрезка идёт по рунам, чтобы не разрезать многобайтовые символы.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + previewEllipsis
}
