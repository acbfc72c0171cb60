package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Задержки повторного подключения.
const (
	redialMinDelay = time.Second
	redialMaxDelay = 30 * time.Second
)

// Connection — AMQP соединение с одним каналом.
//
// Операции на канале выполняются по одной через WithChannel: публикация
// событий шагов идёт из нескольких горутин Runner. При разрыве соединение
// восстанавливается в фоне, после чего сигналит Reconnected.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	opMu sync.Mutex

	done        chan struct{}
	reconnected chan struct{}
}

// NewConnection подключается к RabbitMQ.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if url == "" {
		return nil, ErrNoBroker
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:         url,
		logger:      logger,
		done:        make(chan struct{}),
		reconnected: make(chan struct{}, 1),
	}

	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	c.conn, c.channel = conn, ch

	go c.watch(conn)

	return c, nil
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	return conn, ch, nil
}

// watch ждёт разрыва conn и переподключается, пока соединение не закрыто через Close.
func (c *Connection) watch(conn *amqp.Connection) {
	for {
		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case err := <-lost:
			if err == nil {
				// Закрыто через Close.
				return
			}
			c.logger.Warn("broker connection lost", "error", err)
		}

		next, ok := c.redial()
		if !ok {
			return
		}
		conn = next
	}
}

// redial подключается заново с растущей задержкой.
// Возвращает false, если соединение закрыли во время ожидания.
func (c *Connection) redial() (*amqp.Connection, bool) {
	delay := redialMinDelay

	for {
		select {
		case <-c.done:
			return nil, false
		case <-time.After(delay):
		}

		conn, ch, err := dial(c.url)
		if err != nil {
			c.logger.Warn("broker reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, redialMaxDelay)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil, false
		}
		c.conn, c.channel = conn, ch
		c.mu.Unlock()

		c.logger.Info("reconnected to broker")

		select {
		case c.reconnected <- struct{}{}:
		default:
		}

		return conn, true
	}
}

// Reconnected сигналит после каждого успешного переподключения.
func (c *Connection) Reconnected() <-chan struct{} {
	return c.reconnected
}

// WithChannel выполняет fn с текущим каналом, по одному вызову за раз.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}

	return fn(ch)
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	return errors.Join(errs...)
}
