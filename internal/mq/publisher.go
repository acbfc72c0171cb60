package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStepFinished          MessageType = "step.finished"
	MessageTypeOrchestrationFinished MessageType = "orchestration.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

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

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// StepFinishedPayload — payload события о завершённом шаге.
type StepFinishedPayload struct {
	OrchestrationID uuid.UUID `json:"orchestration_id"`
	Step            string    `json:"step"`
	Target          string    `json:"target"`
	WorkflowID      string    `json:"workflow_id"`
	Status          string    `json:"status"` // SUCCEEDED или FAILED
	Reason          string    `json:"reason,omitempty"`
	RemoteID        int64     `json:"remote_id,omitempty"`
	HTMLURL         string    `json:"html_url,omitempty"`
	Polls           int       `json:"polls"`
	DurationMs      int64     `json:"duration_ms"`
}

// OrchestrationFinishedPayload — payload события о завершённой оркестрации.
type OrchestrationFinishedPayload struct {
	OrchestrationID uuid.UUID      `json:"orchestration_id"`
	Name            string         `json:"name"`
	Status          string         `json:"status"`
	Steps           map[string]int `json:"steps"` // количество шагов по статусам
	DurationMs      int64          `json:"duration_ms"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
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

// PublishStepFinished публикует событие о завершённом шаге.
func (p *Publisher) PublishStepFinished(ctx context.Context, payload StepFinishedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyStepFinished, NewMessage(MessageTypeStepFinished, payload))
}

// PublishOrchestrationFinished публикует событие о завершённой оркестрации.
func (p *Publisher) PublishOrchestrationFinished(ctx context.Context, payload OrchestrationFinishedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyOrchestrationFinished, NewMessage(MessageTypeOrchestrationFinished, payload))
}
