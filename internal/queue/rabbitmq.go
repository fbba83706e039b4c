package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName holds planning tasks waiting for a worker
	DefaultQueueName = "planner_tasks"
	// DefaultDLQName receives tasks that were rejected or ran out of retries
	DefaultDLQName = "planner_tasks_dlq"
	// DefaultExchangeName routes tasks and dead letters
	DefaultExchangeName = "planner"
	// DefaultDelayedExchangeName holds tasks with a NotBefore in the future.
	// It needs the rabbitmq_delayed_message_exchange plugin.
	DefaultDelayedExchangeName = "planner_delayed"

	tasksRoutingKey = "tasks"
	dlqRoutingKey   = "dlq"

	retryInitialDelay = 2 * time.Second
	retryMaxDelay     = 30 * time.Second
)

// topology names the broker objects the planner declares
type topology struct {
	queue   string
	dlq     string
	direct  string
	delayed string
}

func defaultTopology() topology {
	return topology{
		queue:   DefaultQueueName,
		dlq:     DefaultDLQName,
		direct:  DefaultExchangeName,
		delayed: DefaultDelayedExchangeName,
	}
}

// RabbitMQQueue is the TaskQueue used by the server and worker binaries
type RabbitMQQueue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	publishMu sync.Mutex
	names     topology
	// canDelay is false when the delayed exchange plugin is missing; NotBefore
	// is then enforced by the consumer instead of the broker.
	canDelay bool
	logger   *zap.Logger
}

// NewRabbitMQQueue dials amqpURL and declares the planner topology
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &RabbitMQQueue{conn: conn, channel: ch, names: defaultTopology(), logger: logger}
	if err := q.declare(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare planner topology: %w", err)
	}
	return q, nil
}

// DialWithRetry keeps calling NewRabbitMQQueue with exponential backoff so a
// binary can come up before the broker does
func DialWithRetry(ctx context.Context, amqpURL string, maxRetries int, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL, logger)
		if err == nil {
			return q, nil
		}
		lastErr = err

		wait := backoff(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", wait),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, lastErr)
}

// backoff doubles from retryInitialDelay per attempt, capped at retryMaxDelay
func backoff(attempt int) time.Duration {
	wait := retryInitialDelay
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (q *RabbitMQQueue) declare() error {
	if err := q.declareDelayedExchange(); err != nil {
		return err
	}

	ch, n := q.channel, q.names
	if err := ch.ExchangeDeclare(n.direct, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", n.direct, err)
	}

	if _, err := ch.QueueDeclare(n.dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", n.dlq, err)
	}
	if err := ch.QueueBind(n.dlq, dlqRoutingKey, n.direct, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", n.dlq, err)
	}

	deadLetterTo := amqp.Table{
		"x-dead-letter-exchange":    n.direct,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, deadLetterTo); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", n.queue, err)
	}

	sources := []string{n.direct}
	if q.canDelay {
		sources = append(sources, n.delayed)
	}
	for _, exchange := range sources {
		if err := ch.QueueBind(n.queue, tasksRoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", n.queue, exchange, err)
		}
	}
	return nil
}

// declareDelayedExchange tolerates a missing plugin. The broker closes the
// channel on a failed declare, so a fresh one is opened in that case.
func (q *RabbitMQQueue) declareDelayedExchange() error {
	err := q.channel.ExchangeDeclare(q.names.delayed, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": amqp.ExchangeDirect})
	if err == nil {
		q.canDelay = true
		return nil
	}

	q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	if !q.channel.IsClosed() {
		return nil
	}
	ch, openErr := q.conn.Channel()
	if openErr != nil {
		return fmt.Errorf("failed to reopen channel: %w", openErr)
	}
	q.channel = ch
	return nil
}

// publishingFor encodes task and picks the exchange it goes to. A task with a
// future NotBefore goes through the delayed exchange when one is available; a
// NotAfter becomes the per-message expiration.
func publishingFor(task *Task, now time.Time, names topology, canDelay bool) (string, amqp.Publishing, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to marshal task: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID.String(),
		Type:         string(task.Type),
		Timestamp:    task.CreatedAt,
		Body:         body,
	}
	if task.NotAfter != nil {
		if ttl := task.NotAfter.Sub(now); ttl > 0 {
			msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	exchange := names.direct
	if task.NotBefore != nil && canDelay {
		if wait := task.NotBefore.Sub(now); wait > 0 {
			exchange = names.delayed
			msg.Headers = amqp.Table{"x-delay": wait.Milliseconds()}
		}
	}
	return exchange, msg, nil
}

// Enqueue publishes task for the worker pool
func (q *RabbitMQQueue) Enqueue(ctx context.Context, task *Task) error {
	exchange, msg, err := publishingFor(task, time.Now(), q.names, q.canDelay)
	if err != nil {
		return err
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchange, tasksRoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s task: %w", task.Type, err)
	}
	return nil
}

// errUndecodable marks deliveries that can never be processed
var errUndecodable = errors.New("undecodable task")

// decodeTask parses a delivery body; expired tasks are reported as (nil, nil)
func decodeTask(body []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	if task.Type == "" {
		return nil, fmt.Errorf("%w: missing type", errUndecodable)
	}
	if task.IsExpired() {
		return nil, nil
	}
	return &task, nil
}

// Consume streams tasks on a dedicated channel until ctx ends. Undecodable or
// expired deliveries are rejected to the DLQ without reaching the caller.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	prefetchCount = max(prefetchCount, 1)

	ch, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(q.names.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan *Message, prefetchCount)
	errs := make(chan error, 1)
	go q.forward(ctx, ch, deliveries, out, errs)
	return out, errs, nil
}

func (q *RabbitMQQueue) forward(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery, out chan<- *Message, errs chan<- error) {
	defer func() {
		_ = ch.Close()
		close(errs)
		close(out)
	}()

	for {
		var d amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return
		case d, ok = <-deliveries:
		}
		if !ok {
			errs <- errors.New("delivery channel closed")
			return
		}

		task, err := decodeTask(d.Body)
		if err != nil {
			q.logger.Error("failed_to_unmarshal_task", zap.String("message_id", d.MessageId), zap.Error(err))
		}
		if task == nil {
			_ = d.Nack(false, false)
			continue
		}

		select {
		case out <- &Message{Task: task, DeliveryTag: d.DeliveryTag, Channel: ch}:
		case <-ctx.Done():
			_ = d.Nack(false, true)
			return
		}
	}
}

// HealthCheck reports whether the connection and publish channel are open
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case q.conn == nil || q.conn.IsClosed():
		return errors.New("rabbitmq connection is closed")
	case q.channel == nil || q.channel.IsClosed():
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// PurgeOlderThan drops dead-lettered tasks published more than retention ago.
// The DLQ is read front to back and the scan ends at the first task still
// inside the window, which is requeued.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	cutoff := time.Now().Add(-retention)
	var purged int
	for ctx.Err() == nil {
		d, ok, err := ch.Get(q.names.dlq, false)
		switch {
		case err != nil:
			return purged, fmt.Errorf("failed to read %s: %w", q.names.dlq, err)
		case !ok:
			return purged, nil
		case d.Timestamp.IsZero() || d.Timestamp.After(cutoff):
			_ = d.Nack(false, true)
			return purged, nil
		}
		if err := d.Ack(false); err != nil {
			return purged, fmt.Errorf("failed to ack dead letter: %w", err)
		}
		purged++
	}
	return purged, ctx.Err()
}

// Close closes the publish channel and the connection
func (q *RabbitMQQueue) Close() error {
	var errs []error
	if q.channel != nil {
		errs = append(errs, q.channel.Close())
	}
	if q.conn != nil {
		errs = append(errs, q.conn.Close())
	}
	return errors.Join(errs...)
}

var (
	_ TaskQueue = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)
