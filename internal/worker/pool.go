package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Crosspost/internal/domain"
)

// Default pool configuration.
const (
	defaultConcurrency = 4
	defaultQueueSize   = 256
)

// JobHandler обрабатывает одно сообщение.
type JobHandler func(ctx context.Context, job domain.PublishJob) error

// Pool — асинхронная очередь PublishJob внутри процесса.
//
// Используется, когда RabbitMQ не нужен: CLI и однопроцессный запуск.
// Повторные попытки ставятся таймером (time.AfterFunc), горутина
// на время backoff не занимается.
type Pool struct {
	concurrency int
	jobs        chan domain.PublishJob
	logger      *slog.Logger

	mu       sync.Mutex
	timers   map[*time.Timer]struct{}
	inflight int
	idle     chan struct{}
	stopped  bool
	stopCh   chan struct{}

	// timerWG — таймеры retry, чей колбэк ещё может записать в jobs.
	timerWG sync.WaitGroup

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// PoolConfig — конфигурация Pool.
type PoolConfig struct {
	// Concurrency — число горутин-исполнителей (default: 4).
	Concurrency int

	// QueueSize — размер буфера очереди (default: 256).
	QueueSize int

	Logger *slog.Logger
}

// NewPool создаёт Pool. Обработка начинается после Start.
func NewPool(cfg PoolConfig) *Pool {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		concurrency: concurrency,
		jobs:        make(chan domain.PublishJob, queueSize),
		logger:      logger,
		timers:      make(map[*time.Timer]struct{}),
		stopCh:      make(chan struct{}),
	}
}

// Start запускает исполнителей.
func (p *Pool) Start(ctx context.Context, handler JobHandler) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx, handler)
		}()
	}

	p.logger.Info("worker pool started", "concurrency", p.concurrency)
}

// Dispatch ставит сообщение в очередь.
func (p *Pool) Dispatch(ctx context.Context, job domain.PublishJob) error {
	if !p.track() {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		p.done()
		return ctx.Err()
	case <-p.stopCh:
		p.done()
		return ErrPoolStopped
	}
}

// DispatchAfter ставит сообщение в очередь через delay.
func (p *Pool) DispatchAfter(ctx context.Context, job domain.PublishJob, delay time.Duration) error {
	if delay <= 0 {
		return p.Dispatch(ctx, job)
	}
	if !p.track() {
		return ErrPoolStopped
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.done()
		return ErrPoolStopped
	}

	// p.mu держится до записи в p.timers: колбэк не удалит таймер раньше.
	p.timerWG.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer p.timerWG.Done()

		p.mu.Lock()
		delete(p.timers, timer)
		stopped := p.stopped
		p.mu.Unlock()

		if stopped {
			p.done()
			return
		}

		select {
		case p.jobs <- job:
		case <-p.stopCh:
			p.done()
		}
	})
	p.timers[timer] = struct{}{}
	p.mu.Unlock()

	return nil
}

// Wait ждёт, пока не останется ни одного сообщения в очереди,
// в обработке или в ожидании retry.
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	if p.inflight == 0 {
		p.mu.Unlock()
		return nil
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending возвращает число незавершённых сообщений.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

// Stop останавливает Pool. Отложенные retry отменяются.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	timers := p.timers
	p.timers = make(map[*time.Timer]struct{})
	p.mu.Unlock()

	p.logger.Info("stopping worker pool...", "pending_retries", len(timers))

	for t := range timers {
		// false — колбэк уже запущен и сам вызовет done()
		if t.Stop() {
			p.timerWG.Done()
			p.done()
		}
	}

	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	p.wg.Wait()

	// Запущенный колбэк мог успеть положить сообщение в jobs:
	// дренаж начинается только после всех колбэков.
	p.timerWG.Wait()

	// Неразобранные сообщения теряются: target'ы остаются pending
	// и будут отправлены scheduler'ом снова.
	for {
		select {
		case <-p.jobs:
			p.done()
		default:
			p.logger.Info("worker pool stopped")
			return
		}
	}
}

func (p *Pool) loop(ctx context.Context, handler JobHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case job := <-p.jobs:
			p.run(ctx, handler, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, handler JobHandler, job domain.PublishJob) {
	defer p.done()

	if err := handler(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("publish job failed",
			"job_id", job.ID,
			"post_id", job.PostID,
			"platform_id", job.PlatformID,
			"attempt", job.Attempt,
			"error", err,
		)
	}
}

// track учитывает новое сообщение. false — пул остановлен.
func (p *Pool) track() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if p.inflight == 0 {
		p.idle = make(chan struct{})
	}
	p.inflight++
	return true
}

func (p *Pool) done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight--
	if p.inflight == 0 {
		close(p.idle)
	}
}
