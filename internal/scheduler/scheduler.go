package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/lock"
	"github.com/shaiso/Crosspost/internal/telemetry"
)

const defaultBatchSize = 100

// Store — чтение due-постов и их pending-target'ов.
// Scheduler ничего не пишет в хранилище.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Post, error)
	ListPendingTargets(ctx context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error)
}

// Dispatcher ставит PublishJob в очередь.
// Реализации: mq.Publisher, worker.Pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.PublishJob) error
}

// Scheduler — выбор due-постов и отправка PublishJob по их target'ам.
type Scheduler struct {
	store      Store
	locker     lock.Locker
	dispatcher Dispatcher
	lease      time.Duration
	batchSize  int
	logger     *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Store      Store
	Locker     lock.Locker
	Dispatcher Dispatcher

	// LockLease — время жизни блокировки поста (default: 300s).
	LockLease time.Duration

	// BatchSize — количество постов за один запуск (default: 100).
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	lease := cfg.LockLease
	if lease <= 0 {
		lease = lock.DefaultLease
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:      cfg.Store,
		locker:     cfg.Locker,
		dispatcher: cfg.Dispatcher,
		lease:      lease,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run выполняет один запуск планировщика.
//
// 1. Находит due-посты (status=scheduled, scheduled_time <= now)
// 2. Для каждого берёт блокировку post-publish:<id> без ожидания
// 3. Ставит по одному PublishJob на каждый pending-target
// 4. Снимает блокировку
//
// Ошибка возвращается только если не удалось получить список постов.
// Ошибки отдельного поста логируются и учитываются в Report.Errors.
func (s *Scheduler) Run(ctx context.Context, now time.Time, dryRun bool) (*Report, error) {
	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	telemetry.SchedulerRuns.WithLabelValues(mode).Inc()

	report := &Report{RanAt: now, DryRun: dryRun}

	// 1. Находим due-посты
	posts, err := s.store.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	report.Examined = len(posts)

	if len(posts) == 0 {
		s.logger.Debug("no posts due for publishing")
		return report, nil
	}

	s.logger.Debug("found due posts", "count", len(posts), "dry_run", dryRun)

	// 2. Обрабатываем каждый пост
	for i := range posts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		pr := s.processPost(ctx, &posts[i], now, dryRun, report)
		telemetry.SchedulerPosts.WithLabelValues(string(pr.Outcome)).Inc()
		report.add(pr)
	}

	s.logger.Info("scheduler run completed",
		"dry_run", dryRun,
		"due", report.Examined,
		"dispatched", report.Dispatched,
		"would_dispatch", report.WouldDispatch,
		"skipped_locked", report.SkippedLocked,
		"skipped_no_pending", report.SkippedNoPending,
		"errors", report.Errors,
	)

	return report, nil
}

// processPost обрабатывает один пост под блокировкой.
func (s *Scheduler) processPost(ctx context.Context, post *domain.Post, now time.Time, dryRun bool, report *Report) PostReport {
	logger := telemetry.ForPost(s.logger, post.ID)
	pr := PostReport{
		PostID:        post.ID,
		Title:         post.Title,
		ScheduledTime: post.ScheduledTime,
	}

	// 1. Блокировка без ожидания
	handle, err := s.locker.TryAcquire(ctx, lock.PostPublishKey(post.ID), s.lease)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			logger.Warn("post is already being published, skipping", "title", post.Title)
			report.SkippedLocked++
			pr.Outcome = OutcomeLocked
			return pr
		}
		logger.Error("failed to acquire publish lock", "error", err)
		report.Errors++
		pr.Outcome = OutcomeError
		pr.Error = err.Error()
		return pr
	}
	defer s.release(handle, logger)

	// 2. Pending-target'ы
	targets, err := s.store.ListPendingTargets(ctx, post.ID)
	if err != nil {
		logger.Error("failed to list pending targets", "error", err)
		report.Errors++
		pr.Outcome = OutcomeError
		pr.Error = err.Error()
		return pr
	}

	for i := range targets {
		pr.Platforms = append(pr.Platforms, targets[i].Platform.Name)
	}

	if len(targets) == 0 {
		logger.Debug("no pending targets")
		report.SkippedNoPending++
		pr.Outcome = OutcomeNoPending
		return pr
	}

	// 3. Dry run: только отчёт
	if dryRun {
		report.WouldDispatch += len(targets)
		pr.Outcome = OutcomeWouldDispatch
		return pr
	}

	// 4. По одному сообщению на target, общий DispatchID
	dispatchID := uuid.New()
	var dispatched, failed int
	var lastErr error

	for i := range targets {
		target := &targets[i]
		job := domain.NewPublishJob(dispatchID, post.ID, target.PlatformID, now)

		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			logger.Error("failed to dispatch publish job",
				"platform_id", target.PlatformID,
				"platform", target.Platform.Name,
				"error", err,
			)
			failed++
			lastErr = err
			continue
		}
		dispatched++
	}

	report.Dispatched += dispatched
	report.Errors += failed
	telemetry.JobsDispatched.Add(float64(dispatched))

	if lastErr != nil {
		pr.Outcome = OutcomeError
		pr.Error = fmt.Sprintf("%d of %d jobs not dispatched: %v", failed, len(targets), lastErr)
		return pr
	}

	logger.Info("dispatched publish jobs",
		"title", post.Title,
		"dispatch_id", dispatchID,
		"jobs", dispatched,
	)
	pr.Outcome = OutcomeDispatched
	return pr
}

// release снимает блокировку. Отмена ctx запуска не должна оставлять
// блокировку до истечения lease, поэтому используется отдельный контекст.
func (s *Scheduler) release(h *lock.Handle, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.locker.Release(ctx, h); err != nil {
		logger.Warn("failed to release publish lock", "key", h.Key, "error", err)
	}
}
