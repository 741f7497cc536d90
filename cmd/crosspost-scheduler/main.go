// Crosspost Scheduler — периодически отправляет due-посты на публикацию.
//
// Scheduler:
//   - Раз в scheduler.spec (по умолчанию @every 1m) выполняет Scheduler.Run
//   - Лидер выбирается через pg_try_advisory_lock, остальные экземпляры ждут
//   - В режиме dispatch.mode=inline сам выполняет публикацию (worker.Pool)
//
// HTTP: /healthz, /metrics, /api/v1/posts/{id}/publishing.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Crosspost/internal/api"
	"github.com/shaiso/Crosspost/internal/app"
	"github.com/shaiso/Crosspost/internal/config"
	"github.com/shaiso/Crosspost/internal/lock"
	"github.com/shaiso/Crosspost/internal/scheduler"
	"github.com/shaiso/Crosspost/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("CROSSPOST_CONFIG"))
	if err != nil {
		telemetry.NewLogger(telemetry.LogOptions{Component: "crosspost-scheduler"}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(telemetry.LogOptions{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "crosspost-scheduler",
	})
	logger.Info("starting crosspost-scheduler",
		"spec", cfg.Scheduler.Spec,
		"lock_backend", cfg.LockBackend,
		"dispatch_mode", cfg.DispatchMode,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open app", "error", err)
		os.Exit(1)
	}
	defer env.Close()

	sched, err := env.NewScheduler(ctx)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	leader := lock.NewLeader(env.DB, lock.SchedulerLeaderKey)
	defer func() {
		resignCtx, resignCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer resignCancel()
		if err := leader.Resign(resignCtx); err != nil {
			logger.Warn("failed to resign leadership", "error", err)
		}
	}()

	trigger, err := scheduler.NewTrigger(scheduler.TriggerConfig{
		Spec:   cfg.Scheduler.Spec,
		Logger: logger,
		Run: func(ctx context.Context, now time.Time) error {
			// пытаемся стать лидером (или подтвердить лидерство)
			ok, err := leader.TryLead(ctx)
			if err != nil {
				return err
			}
			if !ok {
				logger.Debug("not a leader, skipping run")
				return nil
			}

			_, err = sched.Run(ctx, now, false)
			return err
		},
	})
	if err != nil {
		logger.Error("failed to create trigger", "error", err)
		os.Exit(1)
	}

	trigger.Start(ctx)

	handler := api.NewHandler(api.Config{
		Posts:     env.Posts,
		Ready:     env.Ping,
		Component: "crosspost-scheduler",
		Logger:    logger,
	})
	if err := api.Serve(ctx, cfg.HTTPPort, handler.NewMux(), logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	// Останавливаем trigger, затем Pool (env.Close)
	trigger.Stop()
	logger.Info("crosspost-scheduler stopped")
}
