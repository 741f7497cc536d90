package domain

import (
	"time"

	"github.com/google/uuid"
)

// PublishJob — сообщение о публикации одного target'а.
//
// Все данные о retry живут в самом сообщении: повторная попытка —
// это новое сообщение с Attempt+1, исходное не меняется.
type PublishJob struct {
	// ID — идентификатор сообщения (новый на каждую попытку).
	ID uuid.UUID `json:"id"`

	// DispatchID — общий для всех попыток одной отправки scheduler'а.
	DispatchID uuid.UUID `json:"dispatch_id"`

	PostID     uuid.UUID `json:"post_id"`
	PlatformID uuid.UUID `json:"platform_id"`

	// Attempt — номер попытки, начиная с 1.
	Attempt int `json:"attempt"`

	// NotBefore — раньше этого времени попытку выполнять нельзя.
	NotBefore time.Time `json:"not_before"`

	// DispatchedAt — когда scheduler поставил первую попытку.
	DispatchedAt time.Time `json:"dispatched_at"`
}

// NewPublishJob создаёт первую попытку.
func NewPublishJob(dispatchID, postID, platformID uuid.UUID, now time.Time) PublishJob {
	return PublishJob{
		ID:           uuid.New(),
		DispatchID:   dispatchID,
		PostID:       postID,
		PlatformID:   platformID,
		Attempt:      1,
		NotBefore:    now,
		DispatchedAt: now,
	}
}

// Next возвращает сообщение следующей попытки.
func (j PublishJob) Next(delay time.Duration, now time.Time) PublishJob {
	next := j
	next.ID = uuid.New()
	next.Attempt = j.Attempt + 1
	next.NotBefore = now.Add(delay)
	return next
}
