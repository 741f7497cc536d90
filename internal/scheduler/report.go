package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// PostOutcome — итог обработки одного due-поста.
type PostOutcome string

const (
	// OutcomeDispatched — сообщения по pending-target'ам поставлены в очередь.
	OutcomeDispatched PostOutcome = "dispatched"

	// OutcomeWouldDispatch — dry run: сообщения были бы поставлены.
	OutcomeWouldDispatch PostOutcome = "would_dispatch"

	// OutcomeLocked — пост обрабатывает другой запуск.
	OutcomeLocked PostOutcome = "locked"

	// OutcomeNoPending — у поста нет pending-target'ов.
	OutcomeNoPending PostOutcome = "no_pending"

	// OutcomeError — ошибка блокировки, чтения target'ов или отправки.
	OutcomeError PostOutcome = "error"
)

// Report — результат одного запуска Scheduler.Run.
type Report struct {
	RanAt  time.Time `json:"ran_at"`
	DryRun bool      `json:"dry_run"`

	// Examined — число due-постов в выборке.
	Examined int `json:"examined"`

	SkippedLocked    int `json:"skipped_locked"`
	SkippedNoPending int `json:"skipped_no_pending"`

	// Dispatched — поставленные сообщения (по target'ам, не по постам).
	Dispatched int `json:"dispatched"`

	// WouldDispatch — то же для dry run.
	WouldDispatch int `json:"would_dispatch"`

	Errors int `json:"errors"`

	Posts []PostReport `json:"posts"`
}

// PostReport — строка отчёта по одному посту.
type PostReport struct {
	PostID        uuid.UUID   `json:"post_id"`
	Title         string      `json:"title"`
	ScheduledTime *time.Time  `json:"scheduled_time,omitempty"`
	Platforms     []string    `json:"platforms,omitempty"`
	Outcome       PostOutcome `json:"outcome"`
	Error         string      `json:"error,omitempty"`
}

func (r *Report) add(p PostReport) {
	r.Posts = append(r.Posts, p)
}
