// Package tasks moves background work between processes. The coordinator
// enqueues named tasks, worker processes consume them from a shared queue
// group so each task is handled once.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const subjectPrefix = "tasks."

// Task is the wire envelope for one unit of background work.
type Task struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// DecodePayload unmarshals the task payload into v.
func (t *Task) DecodePayload(v any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("task %s has no payload", t.Name)
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode payload of task %s: %w", t.Name, err)
	}
	return nil
}

// Dispatcher enqueues a task for asynchronous execution and returns its id.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, payload any, correlationID string) (string, error)
}

// Handler processes one consumed task.
type Handler func(ctx context.Context, task *Task) error

// Subject returns the transport subject a task name maps to.
func Subject(name string) string {
	return subjectPrefix + name
}

// NewTask builds an envelope with a fresh id and the payload marshalled.
func NewTask(name string, payload any, correlationID string) (*Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("task name is empty")
	}
	task := &Task{
		ID:            uuid.NewString(),
		Name:          name,
		CorrelationID: correlationID,
		EnqueuedAt:    time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload of task %s: %w", name, err)
		}
		task.Payload = data
	}
	return task, nil
}
