// Package queue отправляет уведомления о сбросе пароля в RabbitMQ.
// Соединение — явная зависимость с ленивым подключением и ограниченным
// экспоненциальным backoff при реконнекте, не глобальный синглтон.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// ResetPasswordMessage — сообщение для consumer-а рассылки писем.
// Формат зафиксирован контрактом очереди reset-password-stream.
type ResetPasswordMessage struct {
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Datetime   string `json:"datetime"` // RFC 3339, UTC
	UserID     string `json:"user_id"`
	ResetToken string `json:"reset_token"`
}

// Publisher публикует сообщения сброса пароля
type Publisher interface {
	// PublishPasswordReset публикует сообщение с persistent delivery.
	// Ошибка означает, что сообщение не принято брокером.
	PublishPasswordReset(ctx context.Context, msg ResetPasswordMessage) error

	// Close закрывает соединение с брокером
	Close() error
}

const (
	reconnectAttempts = 4
	reconnectBase     = 200 * time.Millisecond
)

// AMQPPublisher реализует Publisher поверх RabbitMQ
type AMQPPublisher struct {
	logger *slog.Logger
	conn   *amqp.Connection
	ch     *amqp.Channel
	url    string
	queue  string
	mu     sync.Mutex
}

// NewAMQPPublisher создает publisher с ленивым подключением:
// соединение устанавливается при первой публикации
func NewAMQPPublisher(url, queue string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		logger: logger,
		url:    url,
		queue:  queue,
	}
}

// PublishPasswordReset публикует сообщение с persistent delivery.
// При обрыве соединения выполняется ограниченное число попыток
// реконнекта с экспоненциальным backoff; исчерпание попыток — ошибка.
func (p *AMQPPublisher) PublishPasswordReset(ctx context.Context, msg ResetPasswordMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reset message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := retry.WithMaxRetries(reconnectAttempts, retry.NewExponential(reconnectBase))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.ensureConnected(); err != nil {
			return retry.RetryableError(err)
		}

		err := p.ch.PublishWithContext(ctx,
			"",      // exchange
			p.queue, // routing key
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				Body:         body,
			})
		if err != nil {
			// Канал мог умереть вместе с соединением,
			// следующая попытка начнет с реконнекта
			p.dropConnection()
			return retry.RetryableError(err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to publish reset message: %w", err)
	}

	return nil
}

// Close закрывает соединение с брокером
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}

	return p.conn.Close()
}

// ensureConnected устанавливает соединение и объявляет очередь,
// если живого соединения еще нет. Вызывается под mutex.
func (p *AMQPPublisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}

	p.dropConnection()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// durable очередь: сообщения переживают перезапуск брокера
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	p.conn = conn
	p.ch = ch

	p.logger.Info("connected to rabbitmq", slog.String("queue", p.queue))

	return nil
}

func (p *AMQPPublisher) dropConnection() {
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
}
