package models

import "github.com/magabrotheeeer/access-engine/internal/tier"

// Question вопрос квиза внутри элемента контента. Вопросы — структурированные
// чувствительные данные: при недостаточном уровне доступа список отдаётся
// пустым целиком, частичное раскрытие недопустимо.
type Question struct {
	Text    string   `json:"text"`    // Текст вопроса
	Options []string `json:"options"` // Варианты ответа
	Answer  int      `json:"answer"`  // Индекс правильного варианта
}

// ContentItem элемент учебного контента, потребляемый движком доступа.
// Описания хранятся отдельно для каждого языка платформы.
type ContentItem struct {
	ID            int        // Идентификатор
	Title         string     // Заголовок, виден всем
	DescriptionEN string     // Полный текст, английский
	DescriptionRO string     // Полный текст, румынский
	DescriptionRU string     // Полный текст, русский
	Questions     []Question // Вопросы квиза
	RequiredTier  tier.Tier  // Минимальный уровень для полного доступа
}

// AccessInfo сведения о принятом решении доступа, всегда прикладываются
// к выдаваемому контенту, чтобы вызывающая сторона могла отрисовать апселл.
type AccessInfo struct {
	HasFullAccess   bool      `json:"has_full_access"`
	UserAccessLevel tier.Tier `json:"user_access_level"`
	RequiredTier    tier.Tier `json:"required_tier"`
}

// GatedContent элемент контента после применения гейтинга: либо полная
// полезная нагрузка, либо детерминированное превью.
type GatedContent struct {
	ID                   int        `json:"id"`
	Title                string     `json:"title"`
	DescriptionEN        string     `json:"description_en"`
	DescriptionRO        string     `json:"description_ro"`
	DescriptionRU        string     `json:"description_ru"`
	Questions            []Question `json:"questions"`
	HasFullContentAccess bool       `json:"has_full_content_access"`
	AccessInfo           AccessInfo `json:"access_info"`
}
