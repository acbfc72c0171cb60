package mq

import "errors"

// Ошибки брокера.
var (
	// ErrNoBroker — RABBITMQ_URL не задан, публикация событий отключена.
	ErrNoBroker = errors.New("message broker is not configured (RABBITMQ_URL)")

	// ErrNoChannel — канал закрыт, идёт переподключение.
	ErrNoChannel = errors.New("no channel available")

	// ErrNoHandler — Subscriber создан без обработчика.
	ErrNoHandler = errors.New("subscriber has no handler")
)
