package worker

import (
	"fmt"
	"time"
)

// Default retry configuration.
const defaultMaxAttempts = 3

var defaultBackoff = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// RetryPolicy — политика повторных попыток публикации.
type RetryPolicy struct {
	// MaxAttempts — общее число вызовов адаптера на один target.
	MaxAttempts int

	// Backoff — задержка после неудачной попытки N берётся из Backoff[N-1];
	// если попыток больше, повторяется последнее значение.
	Backoff []time.Duration
}

// DefaultRetryPolicy — 3 попытки, задержки 30s, 60s, 120s.
func DefaultRetryPolicy() RetryPolicy {
	backoff := make([]time.Duration, len(defaultBackoff))
	copy(backoff, defaultBackoff)
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, Backoff: backoff}
}

// Delay возвращает задержку перед попыткой attempt+1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// MaxDelay — самая длинная задержка политики.
func (p RetryPolicy) MaxDelay() time.Duration {
	var longest time.Duration
	for _, d := range p.Backoff {
		longest = max(longest, d)
	}
	return longest
}

// CanRetry проверяет, можно ли сделать ещё одну попытку после attempt.
func (p RetryPolicy) CanRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// FailureMessage — текст ошибки target'а после исчерпания попыток.
func FailureMessage(attempts int, lastError string) string {
	return fmt.Sprintf("Publishing failed after %d attempts: %s", attempts, lastError)
}
