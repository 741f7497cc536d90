// Package app собирает компоненты crosspost из конфигурации.
//
// Используется бинарниками cmd/crosspost, cmd/crosspost-scheduler и
// cmd/crosspost-worker, чтобы выбор хранилища блокировок и способа
// доставки PublishJob был одинаковым во всех процессах.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shaiso/Crosspost/internal/config"
	"github.com/shaiso/Crosspost/internal/lock"
	"github.com/shaiso/Crosspost/internal/mq"
	"github.com/shaiso/Crosspost/internal/publisher"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/shaiso/Crosspost/internal/scheduler"
	"github.com/shaiso/Crosspost/internal/worker"
)

// lockPrefix — префикс ключей блокировок в Redis.
const lockPrefix = "crosspost:"

// App — подключения и репозитории одного процесса.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB        *pgxpool.Pool
	Posts     *repo.PostRepo
	Platforms *repo.PlatformRepo

	redis   *redis.Client
	mqConn  *mq.Connection
	pool    *worker.Pool
	closers []func()
}

// Open подключается к Postgres и создаёт репозитории.
// Остальные подключения создаются по требованию.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := repo.NewPool(ctx, repo.DBConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DatabaseMaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("connected to database")

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Posts:     repo.NewPostRepo(db),
		Platforms: repo.NewPlatformRepo(db),
	}
	a.closers = append(a.closers, db.Close)
	return a, nil
}

// Locker возвращает блокировку согласно lock.backend.
func (a *App) Locker(ctx context.Context) (lock.Locker, error) {
	switch a.Config.LockBackend {
	case config.LockBackendPostgres:
		return lock.NewPostgresLocker(a.DB), nil
	case config.LockBackendRedis:
		if a.redis == nil {
			client, err := lock.NewRedisClient(ctx, a.Config.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			a.redis = client
			a.closers = append(a.closers, func() { _ = client.Close() })
			a.Logger.Info("connected to redis")
		}
		return lock.NewRedisLocker(a.redis, lockPrefix), nil
	default:
		return nil, fmt.Errorf("%w: unknown lock backend %q", config.ErrInvalidConfig, a.Config.LockBackend)
	}
}

// Broker подключается к RabbitMQ, объявляет топологию и возвращает Publisher.
func (a *App) Broker(ctx context.Context) (*mq.Connection, *mq.Publisher, error) {
	delays := a.Config.Publishing.Backoff()

	if a.mqConn == nil {
		conn, err := mq.NewConnection(mq.ConnectionConfig{URL: a.Config.RabbitMQURL, Logger: a.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		if err := mq.SetupTopology(ctx, conn, delays); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("setup topology: %w", err)
		}
		a.mqConn = conn
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.Logger.Info("connected to rabbitmq", "topology", mq.TopologyInfo(delays))
	}

	return a.mqConn, mq.NewPublisher(a.mqConn, a.Logger, delays), nil
}

// NewExecutor создаёт Executor поверх PostRepo.
func (a *App) NewExecutor(requeuer worker.Requeuer) *worker.Executor {
	return worker.NewExecutor(worker.ExecutorConfig{
		Store:    a.Posts,
		Registry: NewRegistry(a.Config),
		Requeuer: requeuer,
		Policy:   RetryPolicy(a.Config),
		Logger:   a.Logger,
	})
}

// StartPool запускает Pool внутри процесса (dispatch.mode=inline).
func (a *App) StartPool(ctx context.Context) *worker.Pool {
	if a.pool != nil {
		return a.pool
	}

	pool := worker.NewPool(worker.PoolConfig{
		Concurrency: a.Config.Worker.Concurrency,
		Logger:      a.Logger,
	})
	exec := a.NewExecutor(pool)
	pool.Start(ctx, worker.JobHandlerFor(exec))

	a.pool = pool
	a.closers = append(a.closers, pool.Stop)
	return pool
}

// Pool возвращает запущенный Pool или nil.
func (a *App) Pool() *worker.Pool {
	return a.pool
}

// Dispatcher возвращает получателя PublishJob согласно dispatch.mode.
func (a *App) Dispatcher(ctx context.Context) (scheduler.Dispatcher, error) {
	switch a.Config.DispatchMode {
	case config.DispatchModeInline:
		return a.StartPool(ctx), nil
	case config.DispatchModeAMQP:
		_, pub, err := a.Broker(ctx)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unknown dispatch mode %q", config.ErrInvalidConfig, a.Config.DispatchMode)
	}
}

// NewScheduler собирает Scheduler: PostRepo, блокировка, dispatcher.
func (a *App) NewScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	locker, err := a.Locker(ctx)
	if err != nil {
		return nil, err
	}
	dispatcher, err := a.Dispatcher(ctx)
	if err != nil {
		return nil, err
	}

	return scheduler.New(scheduler.Config{
		Store:      a.Posts,
		Locker:     locker,
		Dispatcher: dispatcher,
		LockLease:  a.Config.Publishing.LockLease(),
		BatchSize:  a.Config.Scheduler.BatchSize,
		Logger:     a.Logger,
	}), nil
}

// Ping проверяет доступность Postgres (для /healthz).
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	if err := a.DB.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if a.mqConn != nil && !a.mqConn.IsConnected() {
		errs = append(errs, errors.New("rabbitmq: not connected"))
	}
	return errors.Join(errs...)
}

// Close закрывает подключения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewRegistry создаёт реестр адаптеров из настроек.
func NewRegistry(cfg *config.Config) *publisher.Registry {
	return publisher.NewDefaultRegistry(publisher.Options{
		WebhookBaseURL:  cfg.Adapters.WebhookBaseURL,
		MockSuccessRate: cfg.Adapters.MockSuccessRate,
	})
}

// RetryPolicy переводит настройки publishing в worker.RetryPolicy.
func RetryPolicy(cfg *config.Config) worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxAttempts: cfg.Publishing.MaxRetries,
		Backoff:     cfg.Publishing.Backoff(),
	}
}
