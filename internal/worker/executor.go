package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/publisher"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/shaiso/Crosspost/internal/telemetry"
)

// Store — то, что Executor читает и пишет в хранилище.
type Store interface {
	GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	GetTarget(ctx context.Context, postID, platformID uuid.UUID) (*domain.PlatformTarget, error)
	InPostTx(ctx context.Context, postID uuid.UUID, fn func(repo.PostTx) error) error
}

// Requeuer ставит повторную попытку с задержкой.
// Реализации: mq.Publisher (очереди задержки), Pool (таймер в процессе).
type Requeuer interface {
	DispatchAfter(ctx context.Context, job domain.PublishJob, delay time.Duration) error
}

// Outcome — итог выполнения одного сообщения.
type Outcome string

const (
	// OutcomeSucceeded — опубликовано, target в published.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeRetryScheduled — попытка неудачна, следующая поставлена в очередь.
	OutcomeRetryScheduled Outcome = "retry_scheduled"

	// OutcomeFailed — попытки исчерпаны, target в failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped — target уже в финальном статусе, результат попытки не записан.
	OutcomeSkipped Outcome = "skipped"
)

// Executor выполняет PublishJob: одна попытка публикации одного target'а.
//
// Жизненный цикл target'а:
//
//	pending → (попытка неудачна, есть попытки) → pending + новое сообщение с задержкой
//	        → (успех) → published
//	        → (попытки исчерпаны) → failed
//
// Финальная запись и агрегация статуса поста выполняются в одной
// транзакции с блокировкой поста (Store.InPostTx).
type Executor struct {
	store    Store
	registry *publisher.Registry
	requeuer Requeuer
	policy   RetryPolicy
	logger   *slog.Logger
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
}

// ExecutorConfig — конфигурация Executor.
type ExecutorConfig struct {
	Store    Store
	Registry *publisher.Registry

	// Requeuer — куда ставить повторные попытки.
	// Можно задать позже через SetRequeuer.
	Requeuer Requeuer

	// Policy — политика retry (если MaxAttempts == 0 — DefaultRetryPolicy()).
	Policy RetryPolicy

	Logger *slog.Logger

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// NewExecutor создаёт Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	policy := cfg.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Executor{
		store:    cfg.Store,
		registry: cfg.Registry,
		requeuer: cfg.Requeuer,
		policy:   policy,
		logger:   logger,
		now:      now,
		wait:     sleepCtx,
	}
}

// SetRequeuer задаёт Requeuer. Вызывается до начала обработки.
func (e *Executor) SetRequeuer(r Requeuer) {
	e.requeuer = r
}

// Policy возвращает действующую политику retry.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute выполняет одну попытку.
//
// Возвращает error только когда результат не записан (БД недоступна,
// контекст отменён); такое сообщение нужно доставить повторно.
func (e *Executor) Execute(ctx context.Context, job domain.PublishJob) (Outcome, error) {
	logger := telemetry.ForJob(e.logger, job)

	// 0. Попытка пришла раньше NotBefore: дожидаемся её backoff
	if err := e.holdUntil(ctx, job, logger); err != nil {
		return "", err
	}

	// 1. Загружаем target
	target, err := e.store.GetTarget(ctx, job.PostID, job.PlatformID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return OutcomeSkipped, fmt.Errorf("%w: post %s platform %s", ErrTargetNotFound, job.PostID, job.PlatformID)
		}
		return "", fmt.Errorf("get target: %w", err)
	}

	platform := target.Platform
	platformType := string(platform.Type)
	logger = logger.With("platform_type", platformType)

	// 2. Уже обработан — повторная доставка или дубликат отправки
	if target.IsProcessed() {
		logger.Debug("target already processed, skipping", "status", target.Status)
		return OutcomeSkipped, nil
	}

	post, err := e.store.GetPost(ctx, job.PostID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return OutcomeSkipped, fmt.Errorf("%w: post %s", ErrTargetNotFound, job.PostID)
		}
		return "", fmt.Errorf("get post: %w", err)
	}

	// 3. Адаптер по типу платформы; без адаптера retry бесполезен
	adapter, err := e.registry.Get(platform.Type)
	if err != nil {
		logger.Error("no adapter for platform", "error", err)
		return e.finalizeFailed(ctx, job, platformType, err.Error(), logger)
	}

	// 4. Попытка
	start := time.Now()
	result, pubErr := adapter.Publish(ctx, post, &platform)
	telemetry.PublishDuration.WithLabelValues(platformType).Observe(time.Since(start).Seconds())

	// Остановка процесса посреди попытки: ничего не пишем,
	// сообщение будет доставлено повторно.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	if pubErr == nil && result != nil && result.Success {
		telemetry.PublishAttempts.WithLabelValues(platformType, "success").Inc()
		written, err := e.finalizePublished(ctx, job, platformType, logger)
		if err != nil {
			return "", err
		}
		if !written {
			// Параллельная цепочка того же target'а успела раньше
			logger.Warn("published, but target was already finalized", "external_id", result.ExternalID)
			return OutcomeSkipped, nil
		}
		logger.Info("published to platform", "external_id", result.ExternalID)
		return OutcomeSucceeded, nil
	}

	telemetry.PublishAttempts.WithLabelValues(platformType, "failure").Inc()
	reason := failureReason(result, pubErr)

	// 5. Есть попытки — новое сообщение с задержкой, target остаётся pending
	if e.policy.CanRetry(job.Attempt) {
		delay := e.policy.Delay(job.Attempt)
		next := job.Next(delay, e.now())

		err := e.requeue(ctx, next, delay)
		if err == nil {
			telemetry.PublishRetries.WithLabelValues(platformType).Inc()
			logger.Warn("publish attempt failed, retry scheduled",
				"error", reason,
				"delay", delay,
				"next_attempt", next.Attempt,
			)
			return OutcomeRetryScheduled, nil
		}

		logger.Error("failed to schedule retry", "error", err)
		reason = fmt.Sprintf("%s (retry could not be scheduled: %v)", reason, err)
	}

	// 6. Финальная неудача
	return e.finalizeFailed(ctx, job, platformType, FailureMessage(job.Attempt, reason), logger)
}

// holdUntil ждёт до job.NotBefore, но не дольше самой длинной задержки
// политики: NotBefore из далёкого будущего не блокирует исполнителя.
func (e *Executor) holdUntil(ctx context.Context, job domain.PublishJob, logger *slog.Logger) error {
	if job.NotBefore.IsZero() {
		return nil
	}
	early := job.NotBefore.Sub(e.now())
	if early <= 0 {
		return nil
	}
	if limit := e.policy.MaxDelay(); early > limit {
		logger.Warn("not_before is too far ahead, waiting capped", "not_before", job.NotBefore, "limit", limit)
		early = limit
	}

	logger.Debug("job arrived early, waiting", "wait", early)
	return e.wait(ctx, early)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) requeue(ctx context.Context, next domain.PublishJob, delay time.Duration) error {
	if e.requeuer == nil {
		return ErrNoRequeuer
	}
	return e.requeuer.DispatchAfter(ctx, next, delay)
}

// finalizePublished записывает успех и агрегирует статус поста.
func (e *Executor) finalizePublished(ctx context.Context, job domain.PublishJob, platformType string, logger *slog.Logger) (bool, error) {
	now := e.now()
	upd := repo.TargetUpdate{
		Status:      domain.TargetStatusPublished,
		PublishedAt: &now,
	}
	return e.finalize(ctx, job, platformType, upd, logger)
}

// finalizeFailed записывает неудачу с причиной и агрегирует статус поста.
func (e *Executor) finalizeFailed(ctx context.Context, job domain.PublishJob, platformType, reason string, logger *slog.Logger) (Outcome, error) {
	upd := repo.TargetUpdate{
		Status:       domain.TargetStatusFailed,
		ErrorMessage: reason,
	}
	written, err := e.finalize(ctx, job, platformType, upd, logger)
	if err != nil {
		return "", err
	}
	if !written {
		logger.Debug("target already finalized, failure not recorded", "error", reason)
		return OutcomeSkipped, nil
	}
	logger.Error("publishing to platform failed", "error", reason)
	return OutcomeFailed, nil
}

// finalize пишет статус только pending-target'а. false — target уже
// финальный (его завершила другая цепочка попыток), пост не трогаем.
func (e *Executor) finalize(ctx context.Context, job domain.PublishJob, platformType string, upd repo.TargetUpdate, logger *slog.Logger) (bool, error) {
	var written, completed bool

	err := e.store.InPostTx(ctx, job.PostID, func(tx repo.PostTx) error {
		var err error
		written, err = tx.WriteTargetStatus(ctx, job.PlatformID, upd)
		if err != nil {
			return fmt.Errorf("write target status: %w", err)
		}
		if !written {
			return nil
		}

		completed, err = aggregate(ctx, tx, e.now())
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, fmt.Errorf("%w: post %s platform %s", ErrTargetNotFound, job.PostID, job.PlatformID)
		}
		return false, fmt.Errorf("finalize target: %w", err)
	}
	if !written {
		return false, nil
	}

	telemetry.TargetsFinalized.WithLabelValues(platformType, string(upd.Status)).Inc()
	if completed {
		telemetry.PostsCompleted.Inc()
		logger.Info("all platforms processed, post published")
	}
	return true, nil
}

// aggregate переводит пост в published, когда pending-target'ов не осталось.
//
// Пост становится published, даже если все платформы завершились failed.
// Возвращает true, если переход произошёл в этом вызове.
func aggregate(ctx context.Context, tx repo.PostTx, now time.Time) (bool, error) {
	pending, err := tx.CountPendingTargets(ctx)
	if err != nil {
		return false, fmt.Errorf("count pending: %w", err)
	}
	if pending > 0 {
		return false, nil
	}

	published, err := tx.SetPostPublished(ctx, now)
	if err != nil {
		return false, fmt.Errorf("set post published: %w", err)
	}
	return published, nil
}

// failureReason — текст последней ошибки попытки.
func failureReason(result *publisher.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if result != nil && result.Message != "" {
		return result.Message
	}
	return "unknown error"
}
