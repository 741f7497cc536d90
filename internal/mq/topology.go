package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangePublish Exchange = "crosspost.publish"
	ExchangeDLQ     Exchange = "crosspost.dlq"
)

// Queues — имена очередей.
const (
	QueuePublishReady Queue = "publish.ready"
	QueueDLQPublish   Queue = "dlq.publish"
)

// Routing keys.
const (
	RoutingKeyReady      RoutingKey = "ready"
	RoutingKeyDLQPublish RoutingKey = "publish"
)

// DelayRoutingKey — ключ очереди задержки для delay.
func DelayRoutingKey(delay time.Duration) RoutingKey {
	return RoutingKey(fmt.Sprintf("delay.%dms", delay.Milliseconds()))
}

// DelayQueue — имя очереди задержки для delay.
//
// Очередь без потребителей: сообщение лежит x-message-ttl и через
// dead-letter возвращается в publish.ready. Так retry ждёт в брокере,
// а не в памяти воркера.
func DelayQueue(delay time.Duration) Queue {
	return Queue(fmt.Sprintf("publish.delay.%dms", delay.Milliseconds()))
}

// SetupTopology объявляет exchanges, очереди и привязки.
// delays — расписание backoff; для каждой уникальной задержки создаётся очередь.
func SetupTopology(ctx context.Context, conn *Connection, delays []time.Duration) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch, uniqueDelays(delays)); err != nil {
			return err
		}
		return bindQueues(ch, uniqueDelays(delays))
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangePublish, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel, delays []time.Duration) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// publish.ready — отклонённые сообщения уходят в DLQ
		{QueuePublishReady, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQPublish),
		}},
		{QueueDLQPublish, nil},
	}

	for _, d := range delays {
		queues = append(queues, struct {
			name Queue
			args amqp.Table
		}{DelayQueue(d), delayQueueArgs(d)})
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// delayQueueArgs — TTL и возврат в publish.ready по истечении.
func delayQueueArgs(delay time.Duration) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             delay.Milliseconds(),
		"x-dead-letter-exchange":    string(ExchangePublish),
		"x-dead-letter-routing-key": string(RoutingKeyReady),
	}
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel, delays []time.Duration) error {
	type binding struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}
	bindings := []binding{
		{QueuePublishReady, RoutingKeyReady, ExchangePublish},
		{QueueDLQPublish, RoutingKeyDLQPublish, ExchangeDLQ},
	}
	for _, d := range delays {
		bindings = append(bindings, binding{DelayQueue(d), DelayRoutingKey(d), ExchangePublish})
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// uniqueDelays убирает повторы и неположительные задержки, сохраняя порядок.
func uniqueDelays(delays []time.Duration) []time.Duration {
	seen := make(map[time.Duration]bool, len(delays))
	out := make([]time.Duration, 0, len(delays))
	for _, d := range delays {
		if d <= 0 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(delays []time.Duration) string {
	var b strings.Builder
	b.WriteString("\n  Crosspost RabbitMQ Topology:\n\n")
	b.WriteString("    crosspost.publish (direct)\n")
	b.WriteString("    ├── publish.ready [routing: ready]\n")
	b.WriteString("    │       Consumer: crosspost-worker\n")
	b.WriteString("    │       DLQ: dlq.publish\n")
	for _, d := range uniqueDelays(delays) {
		fmt.Fprintf(&b, "    ├── %s [routing: %s, ttl: %s] → ready\n", DelayQueue(d), DelayRoutingKey(d), d)
	}
	b.WriteString("\n    crosspost.dlq (direct)\n")
	b.WriteString("    └── dlq.publish [routing: publish]\n")
	b.WriteString("            Manual processing\n")
	return b.String()
}
