// Crosspost Worker — выполняет PublishJob из RabbitMQ.
//
// Worker:
//   - Получает publish.requested из очереди publish.ready
//   - Вызывает адаптер платформы
//   - Повторные попытки ставит в очереди задержки (publish.delay.<ms>ms)
//   - Записывает итог target'а и статус поста
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Crosspost/internal/api"
	"github.com/shaiso/Crosspost/internal/app"
	"github.com/shaiso/Crosspost/internal/config"
	"github.com/shaiso/Crosspost/internal/telemetry"
	"github.com/shaiso/Crosspost/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("CROSSPOST_CONFIG"))
	if err != nil {
		telemetry.NewLogger(telemetry.LogOptions{Component: "crosspost-worker"}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(telemetry.LogOptions{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "crosspost-worker",
	})
	logger.Info("starting crosspost-worker", "concurrency", cfg.Worker.Concurrency)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open app", "error", err)
		os.Exit(1)
	}
	defer env.Close()

	// RabbitMQ: retry уходят в очереди задержки через тот же Publisher
	conn, publisher, err := env.Broker(ctx)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		Executor:    env.NewExecutor(publisher),
		Conn:        conn,
		Concurrency: cfg.Worker.Concurrency,
		Logger:      logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Posts:     env.Posts,
		Ready:     env.Ping,
		Component: "crosspost-worker",
		Logger:    logger,
	})
	if err := api.Serve(ctx, cfg.HTTPPort, handler.NewMux(), logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	// Останавливаем worker
	w.Stop()
	logger.Info("crosspost-worker stopped")
}
