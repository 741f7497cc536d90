package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Crosspost/internal/telemetry"
)

// Handler — функция обработки сообщения.
//
// nil — ack. Ошибка, обёрнутая в ErrReject, — nack без requeue (в DLQ).
// Любая другая ошибка — nack с requeue.
type Handler func(ctx context.Context, msg *Delivery) error

// ErrReject — сообщение не может быть обработано никогда.
var ErrReject = errors.New("message rejected")

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — конверт; Payload содержит json.RawMessage.
	Message Message

	// Redelivered — брокер доставляет сообщение повторно.
	Redelivered bool

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// action — что сделать с сообщением после обработки.
type action string

const (
	actionAck     action = "ack"
	actionRequeue action = "requeue"
	actionReject  action = "reject"
)

// decide переводит результат обработчика в ack/nack.
func decide(err error) action {
	switch {
	case err == nil:
		return actionAck
	case errors.Is(err, ErrReject):
		return actionReject
	default:
		// Ошибка инфраструктуры. Номер попытки лежит в самом
		// сообщении, поэтому повторная доставка не добавляет попыток.
		return actionRequeue
	}
}

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены ctx или Stop.
// После разрыва соединения ждёт переподключения и продолжает.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		// Подписываемся на переподключение до работы с каналом
		reconnected := c.conn.ReconnectNotify()

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.processDeliveries(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Done():
			return ErrNoChannel
		case <-reconnected:
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil || ch.IsClosed() {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (ack вручную)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения, пока канал открыт.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	delivery, err := decodeDelivery(raw)
	if err != nil {
		c.logger.Error("failed to decode message", "error", err, "body", string(raw.Body))
		c.settle(raw, actionReject)
		return
	}

	logger := c.logger.With("message_id", delivery.Message.ID, "type", delivery.Message.Type)
	if delivery.Redelivered {
		logger.Info("message redelivered")
	} else {
		logger.Debug("received message")
	}

	err = c.invoke(ctx, delivery)

	act := decide(err)
	switch act {
	case actionReject:
		logger.Error("message rejected", "error", err)
	case actionRequeue:
		logger.Error("handler failed, requeueing", "error", err)
	}
	c.settle(raw, act)
}

// invoke вызывает обработчик. Паника — ошибка в коде, сообщение уходит в DLQ.
func (c *Consumer) invoke(ctx context.Context, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrReject, r)
		}
	}()
	return c.handler(ctx, d)
}

func (c *Consumer) settle(raw amqp.Delivery, act action) {
	var err error
	switch act {
	case actionAck:
		err = raw.Ack(false)
	case actionRequeue:
		err = raw.Nack(false, true)
	case actionReject:
		err = raw.Nack(false, false)
	}
	telemetry.MQDeliveries.WithLabelValues(c.queue, string(act)).Inc()

	if err != nil {
		// Канал закрыт: брокер сам вернёт неподтверждённое сообщение
		c.logger.Warn("failed to settle message", "action", act, "error", err)
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// decodeDelivery разбирает конверт. Payload остаётся json.RawMessage.
func decodeDelivery(raw amqp.Delivery) (*Delivery, error) {
	var env struct {
		Message
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw.Body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("message type is empty")
	}

	msg := env.Message
	msg.Payload = env.Payload

	return &Delivery{Message: msg, Redelivered: raw.Redelivered, Raw: raw}, nil
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	var data []byte
	switch p := msg.Payload.(type) {
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		// Payload ещё не сериализован (сообщение собрано в процессе)
		b, err := json.Marshal(p)
		if err != nil {
			return result, fmt.Errorf("marshal payload: %w", err)
		}
		data = b
	}

	if len(data) == 0 {
		return result, errors.New("empty payload")
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
