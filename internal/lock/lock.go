package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLease — время жизни блокировки по умолчанию.
const DefaultLease = 300 * time.Second

// ErrNotAcquired — блокировка занята другим владельцем.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker — неблокирующая распределённая блокировка с арендой.
//
// Аренда истекает на стороне хранилища, поэтому блокировка упавшего
// владельца освобождается сама.
type Locker interface {
	// TryAcquire пытается взять блокировку без ожидания.
	// Возвращает ErrNotAcquired, если ключ занят.
	TryAcquire(ctx context.Context, key string, lease time.Duration) (*Handle, error)

	// Release освобождает блокировку, только если она всё ещё принадлежит h.
	Release(ctx context.Context, h *Handle) error
}

// Handle — взятая блокировка.
type Handle struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// PostPublishKey — ключ блокировки отправки поста.
func PostPublishKey(postID uuid.UUID) string {
	return fmt.Sprintf("post-publish:%s", postID)
}

func newHandle(key string, lease time.Duration) *Handle {
	return &Handle{
		Key:       key,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(lease),
	}
}
