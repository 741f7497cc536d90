package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crosspost"

var (
	// SchedulerRuns — запуски DueScheduler, mode: live | dry_run.
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_runs_total",
		Help:      "Number of scheduler runs.",
	}, []string{"mode"})

	// SchedulerPosts — исход обработки поста scheduler'ом.
	SchedulerPosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_posts_total",
		Help:      "Due posts examined by the scheduler, by outcome.",
	}, []string{"result"})

	// JobsDispatched — поставленные первые попытки.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_dispatched_total",
		Help:      "Publish jobs enqueued by the scheduler.",
	})

	// PublishAttempts — вызовы адаптеров, result: success | failure.
	PublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_attempts_total",
		Help:      "Adapter publish attempts.",
	}, []string{"platform_type", "result"})

	// PublishRetries — отложенные повторные попытки.
	PublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_retries_total",
		Help:      "Publish attempts re-enqueued with backoff.",
	}, []string{"platform_type"})

	// TargetsFinalized — target'ы, достигшие финального статуса.
	TargetsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "targets_finalized_total",
		Help:      "Platform targets that reached a terminal status.",
	}, []string{"platform_type", "status"})

	// PostsCompleted — посты, переведённые в published.
	PostsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_completed_total",
		Help:      "Posts transitioned to published.",
	})

	// PublishDuration — длительность одного вызова адаптера.
	PublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Adapter publish call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"platform_type"})

	// MQDeliveries — доставки из очереди, result: ack | requeue | reject.
	MQDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mq_deliveries_total",
		Help:      "Messages consumed from RabbitMQ, by settlement.",
	}, []string{"queue", "result"})
)
