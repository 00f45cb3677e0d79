package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
)

const (
	// workers join one queue group so every task is delivered to one of them
	queueGroup = "filekeeper-workers"

	defaultHandlerTimeout = 5 * time.Minute
)

// publisher is the slice of *nats.Conn the dispatcher needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials the NATS server with reconnect settings suited for a
// long-running process.
func Connect(addr, clientName string) (*nats.Conn, error) {
	conn, err := nats.Connect(addr,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.PingInterval(30*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", addr, err)
	}
	return conn, nil
}

// NATSDispatcher publishes task envelopes to per-task subjects.
type NATSDispatcher struct {
	conn    publisher
	metrics *Metrics
	logger  logging.Logger
}

func NewNATSDispatcher(conn publisher, metrics *Metrics, logger logging.Logger) *NATSDispatcher {
	return &NATSDispatcher{conn: conn, metrics: metrics, logger: logger}
}

var _ Dispatcher = (*NATSDispatcher)(nil)

func (d *NATSDispatcher) Enqueue(ctx context.Context, name string, payload any, correlationID string) (string, error) {
	task, err := NewTask(name, payload, correlationID)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal task %s: %w", name, err)
	}

	if err := d.conn.Publish(Subject(name), data); err != nil {
		d.metrics.RecordEnqueued(name, "error")
		return "", fmt.Errorf("publish task %s: %w", name, err)
	}

	d.metrics.RecordEnqueued(name, "ok")
	d.logger.Info(ctx, "task enqueued",
		"task", name, "task_id", task.ID, "correlation_id", correlationID)
	return task.ID, nil
}

// Consumer subscribes worker handlers to task subjects. All consumers share
// one queue group, so a task is handled by exactly one worker.
type Consumer struct {
	conn    *nats.Conn
	timeout time.Duration
	metrics *Metrics
	logger  logging.Logger
}

func NewConsumer(conn *nats.Conn, handlerTimeout time.Duration, metrics *Metrics, logger logging.Logger) *Consumer {
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	return &Consumer{conn: conn, timeout: handlerTimeout, metrics: metrics, logger: logger}
}

// Subscribe registers handler for the named task. Messages are processed
// under a per-message timeout derived from ctx.
func (c *Consumer) Subscribe(ctx context.Context, name string, handler Handler) (*nats.Subscription, error) {
	sub, err := c.conn.QueueSubscribe(Subject(name), queueGroup, func(msg *nats.Msg) {
		c.dispatch(ctx, name, msg.Data, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to task %s: %w", name, err)
	}
	return sub, nil
}

func (c *Consumer) dispatch(ctx context.Context, name string, data []byte, handler Handler) {
	task := &Task{}
	if err := json.Unmarshal(data, task); err != nil {
		c.metrics.RecordProcessed(name, "malformed", 0)
		c.logger.Error(ctx, "discarding malformed task", "task", name, "error", err)
		return
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := handler(msgCtx, task)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.RecordProcessed(name, "error", elapsed.Seconds())
		c.logger.Error(msgCtx, "task failed",
			"task", name, "task_id", task.ID, "correlation_id", task.CorrelationID,
			"duration", elapsed, "error", err)
		return
	}

	c.metrics.RecordProcessed(name, "ok", elapsed.Seconds())
	c.logger.Info(msgCtx, "task completed",
		"task", name, "task_id", task.ID, "correlation_id", task.CorrelationID,
		"duration", elapsed)
}
