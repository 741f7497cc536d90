package publisher

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// mockErrors — типичные отказы платформ.
var mockErrors = []string{
	"Rate limit exceeded. Please try again later.",
	"Authentication failed. Please reconnect your account.",
	"Content violates platform guidelines.",
	"Service temporarily unavailable.",
	"Network timeout. Please try again.",
}

// MockConfig — настройки MockAdapter.
type MockConfig struct {
	// SuccessRate — вероятность успеха, 0..1. 0 означает значение
	// по умолчанию (0.8), отрицательное — всегда отказ.
	SuccessRate float64

	// MinDelay, MaxDelay — диапазон имитации сетевой задержки.
	// По умолчанию 100ms..500ms.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Rand — источник случайности (для тестов).
	Rand *rand.Rand
}

// MockAdapter — имитация платформы со случайными отказами.
type MockAdapter struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockAdapter создаёт MockAdapter.
func NewMockAdapter(cfg MockConfig) *MockAdapter {
	if cfg.SuccessRate == 0 {
		cfg.SuccessRate = 0.8
	}
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay = 100 * time.Millisecond
		cfg.MaxDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &MockAdapter{
		successRate: cfg.SuccessRate,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		rnd:         cfg.Rand,
	}
}

// Publish реализует Adapter.
func (a *MockAdapter) Publish(ctx context.Context, post *domain.Post, platform *domain.Platform) (*Result, error) {
	delay, roll, errIdx := a.draw()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if roll < a.successRate {
		return &Result{
			Success:    true,
			Message:    fmt.Sprintf("Successfully published to %s", platform.Name),
			ExternalID: "mock_" + uuid.NewString(),
		}, nil
	}

	return &Result{
		Success: false,
		Message: mockErrors[errIdx],
	}, nil
}

func (a *MockAdapter) draw() (time.Duration, float64, int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delay := a.minDelay
	if span := a.maxDelay - a.minDelay; span > 0 {
		delay += time.Duration(a.rnd.Int63n(int64(span)))
	}
	return delay, a.rnd.Float64(), a.rnd.Intn(len(mockErrors))
}
