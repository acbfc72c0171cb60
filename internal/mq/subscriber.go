package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно событие. Ошибка логируется, чтение продолжается.
type Handler func(ctx context.Context, msg *Message) error

// SubscriberConfig — конфигурация Subscriber.
type SubscriberConfig struct {
	// Bindings — шаблоны routing key (default: все события).
	Bindings []RoutingKey

	// Handler — обработчик событий (обязательно).
	Handler Handler

	// Logger
	Logger *slog.Logger
}

// Subscriber читает события из exchange mrot.events.
//
// Каждый Subscriber получает собственную exclusive auto-delete очередь:
// несколько `mrot events` видят все события, а очередь удаляется
// брокером вместе с соединением. Сообщения подтверждаются автоматически.
type Subscriber struct {
	conn     *Connection
	bindings []RoutingKey
	handler  Handler
	logger   *slog.Logger
}

// NewSubscriber создаёт Subscriber.
func NewSubscriber(conn *Connection, cfg SubscriberConfig) (*Subscriber, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}

	bindings := cfg.Bindings
	if len(bindings) == 0 {
		bindings = []RoutingKey{RoutingKeyAll}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Subscriber{
		conn:     conn,
		bindings: bindings,
		handler:  cfg.Handler,
		logger:   logger,
	}, nil
}

// Run читает события до отмены ctx. После разрыва соединения подписка
// восстанавливается на новом канале. Возвращает ctx.Err() при отмене.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		deliveries, err := s.subscribe(ctx)
		switch {
		case err == nil:
			s.drain(ctx, deliveries)
		case errors.Is(err, ErrNoChannel):
		default:
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("event subscription lost, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.conn.Reconnected():
		}
	}
}

// subscribe объявляет временную очередь, привязывает её и начинает чтение.
func (s *Subscriber) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := s.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			"",    // name: задаёт брокер
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue: %w", err)
		}

		for _, key := range s.bindings {
			if err := ch.QueueBind(q.Name, string(key), string(ExchangeEvents), false, nil); err != nil {
				return fmt.Errorf("bind %s to %s: %w", key, ExchangeEvents, err)
			}
		}

		deliveries, err = ch.Consume(
			q.Name, // queue
			"",     // consumer tag
			true,   // auto-ack
			true,   // exclusive
			false,  // no-local
			false,  // no-wait
			nil,    // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q.Name, err)
		}

		s.logger.Info("subscribed to events", "queue", q.Name, "bindings", s.bindings)
		return nil
	})

	return deliveries, err
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (s *Subscriber) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			s.handle(ctx, d.Body)
		}
	}
}

// handle декодирует и передаёт событие обработчику.
func (s *Subscriber) handle(ctx context.Context, body []byte) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Warn("skipping malformed event", "error", err, "body", string(body))
		return
	}

	if err := s.handler(ctx, &msg); err != nil {
		s.logger.Error("event handler failed", "message_id", msg.ID, "type", msg.Type, "error", err)
	}
}

// ParsePayload декодирует payload события в T.
//
// После доставки Payload — map[string]any, поэтому значение
// проходит через JSON ещё раз.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}

	return result, nil
}
