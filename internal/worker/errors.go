package worker

import "errors"

var (
	// ErrTargetNotFound — строки post_platform нет: пост удалён после отправки.
	ErrTargetNotFound = errors.New("publish target not found")

	// ErrNoRequeuer — Executor не может поставить повторную попытку.
	ErrNoRequeuer = errors.New("no requeuer configured")

	ErrPoolStopped = errors.New("worker pool stopped")

	ErrWorkerStarted = errors.New("worker already started")
	ErrWorkerStopped = errors.New("worker stopped")
)
