package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post — пост, который публикуется сразу на несколько платформ.
//
// Post переходит в published только когда все его PlatformTarget
// достигли финального статуса. Scheduler выбирает посты со статусом
// scheduled и наступившим ScheduledTime.
type Post struct {
	// ID — уникальный идентификатор поста.
	ID uuid.UUID `json:"id"`

	// Title — заголовок.
	Title string `json:"title"`

	// Content — текст поста.
	Content string `json:"content"`

	// ImageURL — ссылка на картинку (опционально).
	ImageURL string `json:"image_url,omitempty"`

	// Status — текущий статус поста.
	Status PostStatus `json:"status"`

	// ScheduledTime — когда пост должен быть опубликован.
	// nil для черновиков.
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`

	// PublishedAt — когда пост перешёл в published.
	// Устанавливается один раз.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue возвращает true, если пост пора публиковать.
func (p *Post) IsDue(now time.Time) bool {
	if p.Status != PostStatusScheduled || p.ScheduledTime == nil {
		return false
	}
	return !p.ScheduledTime.After(now)
}

// IsPublished возвращает true, если пост уже в финальном статусе.
func (p *Post) IsPublished() bool {
	return p.Status.IsTerminal()
}
