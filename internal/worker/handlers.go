package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/mq"
)

// handlePublishRequested обрабатывает сообщение из очереди publish.ready.
func (w *Worker) handlePublishRequested(ctx context.Context, delivery *mq.Delivery) error {
	if delivery.Message.Type != mq.MessageTypePublishRequested {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrReject, delivery.Message.Type)
	}

	job, err := mq.ParsePayload[domain.PublishJob](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse publish.requested payload", "error", err)
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	return w.HandleJob(ctx, job)
}

// HandleJob выполняет сообщение и решает, нужно ли повторить доставку.
// Используется и как JobHandler для Pool.
func (w *Worker) HandleJob(ctx context.Context, job domain.PublishJob) error {
	return handleJob(ctx, w.executor, job, w.logger)
}

// JobHandlerFor возвращает JobHandler поверх Executor.
func JobHandlerFor(executor *Executor) JobHandler {
	return func(ctx context.Context, job domain.PublishJob) error {
		return handleJob(ctx, executor, job, executor.logger)
	}
}

func handleJob(ctx context.Context, executor *Executor, job domain.PublishJob, logger *slog.Logger) error {
	outcome, err := executor.Execute(ctx, job)
	if err != nil {
		// Target удалён вместе с постом — повторять нечего (ack)
		if errors.Is(err, ErrTargetNotFound) {
			logger.Debug("publish job dropped", "job_id", job.ID, "reason", err)
			return nil
		}
		return err
	}

	logger.Debug("publish job processed",
		"job_id", job.ID,
		"attempt", job.Attempt,
		"outcome", outcome,
	)
	return nil
}
