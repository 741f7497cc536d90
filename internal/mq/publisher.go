package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Crosspost/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypePublishRequested MessageType = "publish.requested"
)

// Ошибки публикации в брокер.
var (
	// ErrUnknownDelay — для задержки не объявлена очередь.
	ErrUnknownDelay = errors.New("no delay queue for duration")

	// ErrNotConfirmed — брокер не подтвердил сообщение.
	ErrNotConfirmed = errors.New("message not confirmed by broker")
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует PublishJob в RabbitMQ.
//
// Реализует отправку первой попытки (Dispatch) и отложенной
// повторной (DispatchAfter).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	delays map[time.Duration]bool
}

// NewPublisher создаёт новый Publisher.
// delays должен совпадать с тем, что передан в SetupTopology.
func NewPublisher(conn *Connection, logger *slog.Logger, delays []time.Duration) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	known := make(map[time.Duration]bool, len(delays))
	for _, d := range uniqueDelays(delays) {
		known[d] = true
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		delays: known,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
// Если канал в confirm-режиме, ждёт подтверждения брокера.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	return p.publish(ctx, exchange, routingKey, msg, nil)
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, headers amqp.Table) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Headers:      headers,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		// nil — канал не в confirm-режиме
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("wait confirm %s/%s: %w", exchange, routingKey, err)
			}
			if !acked {
				return fmt.Errorf("%w: %s/%s", ErrNotConfirmed, exchange, routingKey)
			}
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// Dispatch ставит попытку в publish.ready.
func (p *Publisher) Dispatch(ctx context.Context, job domain.PublishJob) error {
	return p.publish(ctx, ExchangePublish, RoutingKeyReady, jobMessage(job), jobHeaders(job))
}

// DispatchAfter ставит попытку в очередь задержки.
// delay <= 0 эквивалентен Dispatch.
func (p *Publisher) DispatchAfter(ctx context.Context, job domain.PublishJob, delay time.Duration) error {
	if delay <= 0 {
		return p.Dispatch(ctx, job)
	}
	if !p.delays[delay] {
		return fmt.Errorf("%w: %s", ErrUnknownDelay, delay)
	}
	return p.publish(ctx, ExchangePublish, DelayRoutingKey(delay), jobMessage(job), jobHeaders(job))
}

func jobMessage(job domain.PublishJob) *Message {
	return &Message{
		ID:        job.ID.String(),
		Type:      MessageTypePublishRequested,
		Payload:   job,
		Timestamp: time.Now(),
	}
}

// jobHeaders дублирует ключи попытки в заголовках: их видно в
// management UI без разбора тела.
func jobHeaders(job domain.PublishJob) amqp.Table {
	return amqp.Table{
		"x-post-id":     job.PostID.String(),
		"x-platform-id": job.PlatformID.String(),
		"x-dispatch-id": job.DispatchID.String(),
		"x-attempt":     int32(job.Attempt),
	}
}
