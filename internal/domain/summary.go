package domain

import (
	"time"

	"github.com/google/uuid"
)

// PublishingSummary — сводка публикации поста по платформам.
type PublishingSummary struct {
	PostID     uuid.UUID       `json:"post_id"`
	PostStatus PostStatus      `json:"post_status"`
	Total      int             `json:"total"`
	Published  int             `json:"published"`
	Failed     int             `json:"failed"`
	Pending    int             `json:"pending"`
	Details    []TargetSummary `json:"details"`
}

// TargetSummary — строка сводки для одной платформы.
type TargetSummary struct {
	Platform     string       `json:"platform"`
	Type         PlatformType `json:"type"`
	Status       TargetStatus `json:"status"`
	PublishedAt  *time.Time   `json:"published_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Summarize собирает сводку по target'ам поста.
func Summarize(post *Post, targets []PlatformTarget) *PublishingSummary {
	s := &PublishingSummary{
		PostID:     post.ID,
		PostStatus: post.Status,
		Total:      len(targets),
		Details:    make([]TargetSummary, 0, len(targets)),
	}

	for _, t := range targets {
		switch t.Status {
		case TargetStatusPublished:
			s.Published++
		case TargetStatusFailed:
			s.Failed++
		default:
			s.Pending++
		}

		s.Details = append(s.Details, TargetSummary{
			Platform:     t.Platform.Name,
			Type:         t.Platform.Type,
			Status:       t.Status,
			PublishedAt:  t.PublishedAt,
			ErrorMessage: t.ErrorMessage,
		})
	}

	return s
}

// AllProcessed возвращает true, если ни одна платформа не ждёт публикации.
func (s *PublishingSummary) AllProcessed() bool {
	return s.Pending == 0
}

// AllSucceeded возвращает true, если все платформы опубликованы.
func (s *PublishingSummary) AllSucceeded() bool {
	return s.Total > 0 && s.Published == s.Total
}
