package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Component string `json:"component,omitempty"`
	Uptime    string `json:"uptime"`
	Error     string `json:"error,omitempty"`
}

// PostResponse — пост без содержимого.
type PostResponse struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Status        domain.PostStatus `json:"status"`
	ScheduledTime *time.Time        `json:"scheduled_time,omitempty"`
	PublishedAt   *time.Time        `json:"published_at,omitempty"`
}

// PostFromDomain конвертирует domain.Post в PostResponse.
func PostFromDomain(p *domain.Post) PostResponse {
	return PostResponse{
		ID:            p.ID,
		Title:         p.Title,
		Status:        p.Status,
		ScheduledTime: p.ScheduledTime,
		PublishedAt:   p.PublishedAt,
	}
}

// PublishingResponse — ответ GET /api/v1/posts/{id}/publishing.
type PublishingResponse struct {
	Post    PostResponse              `json:"post"`
	Summary *domain.PublishingSummary `json:"summary"`
}
