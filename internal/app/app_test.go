package app

import (
	"testing"
	"time"

	"github.com/shaiso/Crosspost/internal/config"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy(t *testing.T) {
	cfg := &config.Config{Publishing: config.Publishing{
		MaxRetries:             4,
		BackoffScheduleSeconds: []int{10, 20},
	}}

	policy := RetryPolicy(cfg)

	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, policy.Backoff)
	assert.Equal(t, 20*time.Second, policy.Delay(3))
}

func TestNewRegistry_Mock(t *testing.T) {
	r := NewRegistry(&config.Config{Adapters: config.Adapters{MockSuccessRate: 0.5}})

	assert.ElementsMatch(t, domain.PlatformTypes(), r.Types())
	a, err := r.Get(domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.IsType(t, &publisher.MockAdapter{}, a)
}

func TestNewRegistry_Webhook(t *testing.T) {
	r := NewRegistry(&config.Config{Adapters: config.Adapters{WebhookBaseURL: "http://hooks.local"}})

	a, err := r.Get(domain.PlatformX)
	require.NoError(t, err)
	assert.IsType(t, &publisher.WebhookAdapter{}, a)
}
