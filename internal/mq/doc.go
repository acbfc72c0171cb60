// Package mq публикует события выполнения в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ и переподключение
//   - topology.go   — topic exchange mrot.events
//   - publisher.go  — публикация сообщений
//   - notifier.go   — события из результатов оркестрации
//   - subscriber.go — чтение событий через временную очередь (`mrot events`)
//
// Типы сообщений:
//   - step.finished          — шаг завершён (SUCCEEDED или FAILED)
//   - orchestration.finished — оркестрация завершена, итоговый статус
package mq
