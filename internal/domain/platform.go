package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlatformType — тип социальной сети.
// По типу выбирается адаптер публикации.
type PlatformType string

const (
	PlatformX         PlatformType = "x"
	PlatformInstagram PlatformType = "instagram"
	PlatformLinkedIn  PlatformType = "linkedin"
	PlatformFacebook  PlatformType = "facebook"
)

// PlatformTypes возвращает все известные типы в стабильном порядке.
func PlatformTypes() []PlatformType {
	return []PlatformType{PlatformX, PlatformInstagram, PlatformLinkedIn, PlatformFacebook}
}

// IsValid проверяет, что тип известен.
func (t PlatformType) IsValid() bool {
	switch t {
	case PlatformX, PlatformInstagram, PlatformLinkedIn, PlatformFacebook:
		return true
	default:
		return false
	}
}

// Label — человекочитаемое имя платформы.
func (t PlatformType) Label() string {
	switch t {
	case PlatformX:
		return "X (Twitter)"
	case PlatformInstagram:
		return "Instagram"
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformFacebook:
		return "Facebook"
	default:
		return string(t)
	}
}

// DefaultCharacterLimit — лимит символов платформы по умолчанию.
func (t PlatformType) DefaultCharacterLimit() int {
	switch t {
	case PlatformX:
		return 280
	case PlatformInstagram:
		return 2200
	case PlatformLinkedIn:
		return 3000
	case PlatformFacebook:
		return 63206
	default:
		return 0
	}
}

// Platform — платформа публикации.
// Для pipeline только читается.
type Platform struct {
	// ID — уникальный идентификатор платформы.
	ID uuid.UUID `json:"id"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// Type — тип платформы, ключ реестра адаптеров.
	Type PlatformType `json:"type"`

	// CharacterLimit — максимальная длина текста.
	CharacterLimit int `json:"character_limit"`

	// IsActive — можно ли выбирать платформу для новых постов.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPlatforms — набор платформ для первичного заполнения.
// ID не заполнен, его назначает хранилище.
func DefaultPlatforms() []Platform {
	types := PlatformTypes()
	out := make([]Platform, 0, len(types))
	for _, t := range types {
		out = append(out, Platform{
			Name:           t.Label(),
			Type:           t,
			CharacterLimit: t.DefaultCharacterLimit(),
			IsActive:       true,
		})
	}
	return out
}
