package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEvents — topic exchange событий выполнения.
const ExchangeEvents Exchange = "mrot.events"

// Routing keys.
const (
	RoutingKeyStepFinished          RoutingKey = "step.finished"
	RoutingKeyOrchestrationFinished RoutingKey = "orchestration.finished"

	// RoutingKeyAll — шаблон topic exchange, совпадающий с любым событием.
	RoutingKeyAll RoutingKey = "#"
)

// SetupTopology объявляет exchange событий. Операция идемпотентна.
//
// Постоянных очередей нет: каждый подписчик (`mrot events`) создаёт
// свою временную очередь, поэтому события без подписчиков отбрасываются.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}
		return nil
	})
}
