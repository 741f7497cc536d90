package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// PostReader — чтение постов и их target'ов.
// Реализации: repo.PostRepo, repo.MemoryStore.
type PostReader interface {
	GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ListTargets(ctx context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error)
}

// Handler — обработчик ops API с зависимостями.
type Handler struct {
	posts     PostReader
	ready     func(ctx context.Context) error
	component string
	startedAt time.Time
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Posts PostReader

	// Ready — проверка готовности для /healthz (например, ping БД).
	// nil — всегда готов.
	Ready func(ctx context.Context) error

	// Component — имя процесса в ответе /healthz.
	Component string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		posts:     cfg.Posts,
		ready:     cfg.Ready,
		component: cfg.Component,
		startedAt: time.Now(),
		logger:    logger,
	}
}
