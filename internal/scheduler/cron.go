package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec — период запуска по умолчанию.
const DefaultSpec = "@every 1m"

// cronParser — парсер расписаний: 5 полей и дескрипторы (@every, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec проверяет валидность расписания.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", spec, err)
	}
	return nil
}

// RunFunc — один запуск по расписанию.
type RunFunc func(ctx context.Context, now time.Time) error

// Trigger периодически вызывает RunFunc.
//
// Запуски не перекрываются: если предыдущий ещё идёт, очередной
// пропускается (cron.SkipIfStillRunning).
type Trigger struct {
	cron   *cron.Cron
	spec   string
	run    RunFunc
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// TriggerConfig — конфигурация Trigger.
type TriggerConfig struct {
	// Spec — расписание (default: "@every 1m").
	Spec string

	// Run — вызывается на каждом срабатывании.
	Run RunFunc

	Logger *slog.Logger
}

// NewTrigger создаёт Trigger. Запуск — Start.
func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Trigger{
		spec:   spec,
		run:    cfg.Run,
		logger: logger,
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	t.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := t.cron.AddFunc(spec, t.fire); err != nil {
		return nil, fmt.Errorf("add schedule: %w", err)
	}
	return t, nil
}

// Start запускает расписание. Отмена ctx прерывает текущий запуск.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.cron.Start()
	t.logger.Info("trigger started", "spec", t.spec)
}

// Stop останавливает расписание и ждёт завершения текущего запуска.
func (t *Trigger) Stop() {
	done := t.cron.Stop()

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	<-done.Done()
	t.logger.Info("trigger stopped")
}

// Fire выполняет запуск вне расписания.
func (t *Trigger) Fire(ctx context.Context) error {
	return t.run(ctx, time.Now())
}

func (t *Trigger) fire() {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}

	if err := t.run(ctx, time.Now()); err != nil {
		t.logger.Error("scheduled run failed", "error", err)
	}
}
