package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// LogOptions — параметры логгера процесса.
type LogOptions struct {
	// Level — DEBUG, INFO, WARN, ERROR, допускается смещение (WARN+2).
	Level string

	// Format — "json" (по умолчанию) или "text".
	Format string

	// Output — куда писать; nil — stdout.
	Output io.Writer

	// Component — имя бинарника, добавляется в каждую запись.
	Component string
}

// ParseLevel разбирает уровень логирования. Нераспознанное значение — INFO.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger создаёт логгер и делает его глобальным (slog.Default).
func NewLogger(opts LogOptions) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stdout
	}

	lvl := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)

	return logger
}

// ForPost добавляет post_id.
func ForPost(logger *slog.Logger, postID uuid.UUID) *slog.Logger {
	return logger.With("post_id", postID.String())
}

// ForJob добавляет идентификаторы попытки: пост, платформу, сообщение, номер.
func ForJob(logger *slog.Logger, job domain.PublishJob) *slog.Logger {
	return logger.With(
		"post_id", job.PostID.String(),
		"platform_id", job.PlatformID.String(),
		"job_id", job.ID.String(),
		"attempt", job.Attempt,
	)
}
