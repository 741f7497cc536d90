package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Crosspost/internal/mq"
)

const defaultPrefetch = 1

// Worker — daemon, исполняющий PublishJob из очереди publish.ready.
//
// Каждый consumer держит prefetch неподтверждённых сообщений; сообщение
// подтверждается только после того, как Executor записал результат
// попытки или поставил следующую. Экземпляров Worker может быть сколько
// угодно: состояние попытки целиком лежит в сообщении и в БД.
type Worker struct {
	executor    *Executor
	conn        *mq.Connection
	concurrency int
	prefetch    int
	logger      *slog.Logger

	mu        sync.Mutex
	state     workerState
	consumers []*mq.Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type workerState int

const (
	stateIdle workerState = iota
	stateRunning
	stateStopped
)

// Config — параметры Worker.
type Config struct {
	// Executor должен ставить повторы через mq.Publisher того же брокера.
	Executor *Executor
	Conn     *mq.Connection

	// Concurrency — число consumer'ов. Default: 4.
	Concurrency int

	// Prefetch на каждого consumer'а. Default: 1.
	Prefetch int

	Logger *slog.Logger
}

// New создаёт Worker. Consumer'ы запускаются в Start.
func New(cfg Config) *Worker {
	w := &Worker{
		executor:    cfg.Executor,
		conn:        cfg.Conn,
		concurrency: cfg.Concurrency,
		prefetch:    cfg.Prefetch,
		logger:      cfg.Logger,
	}
	if w.concurrency <= 0 {
		w.concurrency = defaultConcurrency
	}
	if w.prefetch <= 0 {
		w.prefetch = defaultPrefetch
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start запускает consumer'ы и сразу возвращается.
// Повторный Start и Start после Stop — ошибка.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateStopped:
		return ErrWorkerStopped
	case stateRunning:
		return ErrWorkerStarted
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.state = stateRunning

	w.logger.Info("starting worker",
		"concurrency", w.concurrency,
		"prefetch", w.prefetch,
		"max_attempts", w.executor.Policy().MaxAttempts,
	)

	for i := range w.concurrency {
		c := mq.NewConsumer(w.conn, w.logger.With("consumer", i), mq.ConsumerConfig{
			Queue:    string(mq.QueuePublishReady),
			Handler:  w.handlePublishRequested,
			Prefetch: w.prefetch,
		})
		w.consumers = append(w.consumers, c)

		w.wg.Add(1)
		go w.runConsumer(ctx, c)
	}

	return nil
}

func (w *Worker) runConsumer(ctx context.Context, c *mq.Consumer) {
	defer w.wg.Done()

	err := c.Start(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	w.logger.Error("consumer exited", "error", err)
}

// Stop останавливает consumer'ы и ждёт, пока текущие попытки завершатся.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == stateStopped {
		w.mu.Unlock()
		return
	}
	w.state = stateStopped
	if w.cancel != nil {
		w.cancel()
	}
	for _, c := range w.consumers {
		c.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped — был ли вызван Stop.
func (w *Worker) IsStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateStopped
}
