package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlatformTarget — публикация конкретного поста на конкретной платформе.
//
// Пара (PostID, PlatformID) уникальна. Статус target'а меняет только
// PublishJob; scheduler его лишь читает.
type PlatformTarget struct {
	// PostID — ссылка на пост.
	PostID uuid.UUID `json:"post_id"`

	// PlatformID — ссылка на платформу.
	PlatformID uuid.UUID `json:"platform_id"`

	// Platform — данные платформы (заполняется JOIN'ом при чтении).
	Platform Platform `json:"platform"`

	// Status — статус публикации на платформе.
	Status TargetStatus `json:"status"`

	// PublishedAt — время успешной публикации.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// ErrorMessage — причина неудачи, только для failed.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending возвращает true, если публикация ещё не завершена.
func (t *PlatformTarget) IsPending() bool {
	return t.Status == TargetStatusPending
}

// IsProcessed возвращает true, если target в финальном статусе.
func (t *PlatformTarget) IsProcessed() bool {
	return t.Status.IsTerminal()
}

// MarkPublished переводит target в published и очищает ошибку.
func (t *PlatformTarget) MarkPublished(at time.Time) {
	t.Status = TargetStatusPublished
	t.PublishedAt = &at
	t.ErrorMessage = ""
	t.UpdatedAt = at
}

// MarkFailed переводит target в failed с причиной.
func (t *PlatformTarget) MarkFailed(reason string, at time.Time) {
	t.Status = TargetStatusFailed
	t.PublishedAt = nil
	t.ErrorMessage = reason
	t.UpdatedAt = at
}
