package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Crosspost/internal/domain"
)

// Ошибки публикации.
var (
	// ErrUnknownPlatformType — для типа платформы нет адаптера.
	ErrUnknownPlatformType = errors.New("unknown platform type")

	// ErrWebhookRequest — запрос к webhook завершился транспортной ошибкой.
	ErrWebhookRequest = errors.New("webhook request failed")
)

// Adapter — публикация поста на одной платформе.
//
// Один вызов = одна попытка. Retry делает PublishJob, не адаптер.
// Логический отказ платформы возвращается в Result; error означает
// инфраструктурную проблему и тоже считается неудачной попыткой.
type Adapter interface {
	Publish(ctx context.Context, post *domain.Post, platform *domain.Platform) (*Result, error)
}

// Result — результат одной попытки.
type Result struct {
	// Success — опубликован ли пост.
	Success bool

	// Message — описание результата; при неудаче всегда заполнено.
	Message string

	// ExternalID — идентификатор поста на платформе.
	ExternalID string
}

// Registry — реестр адаптеров по типу платформы.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.PlatformType]Adapter
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.PlatformType]Adapter)}
}

// Register добавляет адаптер для типа платформы.
func (r *Registry) Register(t domain.PlatformType, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[t] = adapter
}

// Get возвращает адаптер для типа платформы.
func (r *Registry) Get(t domain.PlatformType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatformType, t)
	}
	return adapter, nil
}

// Has проверяет, зарегистрирован ли адаптер.
func (r *Registry) Has(t domain.PlatformType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[t]
	return ok
}

// Types возвращает зарегистрированные типы.
func (r *Registry) Types() []domain.PlatformType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PlatformType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Options — настройки реестра по умолчанию.
type Options struct {
	// WebhookBaseURL — если задан, все платформы публикуются через webhook.
	WebhookBaseURL string

	// MockSuccessRate — вероятность успеха mock-адаптера.
	MockSuccessRate float64
}

// NewDefaultRegistry регистрирует адаптер для всех известных платформ.
func NewDefaultRegistry(opts Options) *Registry {
	var adapter Adapter
	if opts.WebhookBaseURL != "" {
		adapter = NewWebhookAdapter(WebhookConfig{BaseURL: opts.WebhookBaseURL})
	} else {
		adapter = NewMockAdapter(MockConfig{SuccessRate: opts.MockSuccessRate})
	}

	r := NewRegistry()
	for _, t := range domain.PlatformTypes() {
		r.Register(t, adapter)
	}
	return r
}
