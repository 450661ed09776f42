package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

const (
	// TaskType is the asynq task type carrying a Command.
	TaskType = "liquidation:persist"
	// DefaultQueue is the asynq queue used when none is configured.
	DefaultQueue = "liquidation"
)

// QueueName returns queue, or DefaultQueue when it is empty.
func QueueName(queue string) string {
	if queue == "" {
		return DefaultQueue
	}
	return queue
}

// PendingKey is the Redis list asynq keeps pending tasks of queue in.
func PendingKey(queue string) string {
	return "asynq:{" + queue + "}:pending"
}

// Transport hands a command to whatever performs it.
type Transport interface {
	Deliver(ctx context.Context, cmd Command) (upstream.Result, error)
}

// SinkTransport executes commands in-process against an upstream sink.
type SinkTransport struct {
	Sink upstream.Sink
}

// Deliver executes cmd synchronously.
func (t SinkTransport) Deliver(ctx context.Context, cmd Command) (upstream.Result, error) {
	if t.Sink == nil {
		return upstream.Result{}, errors.New("outbox: sink not configured")
	}
	return Execute(ctx, t.Sink, cmd)
}

// AsynqTransport publishes commands as asynq tasks for cmd/worker. Tasks are
// never retried.
type AsynqTransport struct {
	Client *asynq.Client
	Queue  string
}

// Deliver enqueues cmd. The result acknowledges the enqueue, not the write.
func (t AsynqTransport) Deliver(ctx context.Context, cmd Command) (upstream.Result, error) {
	if t.Client == nil {
		return upstream.Result{}, errors.New("outbox: asynq client not configured")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return upstream.Result{}, fmt.Errorf("encode command: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(0), asynq.TaskID(cmd.ID), asynq.Queue(QueueName(t.Queue))}
	info, err := t.Client.EnqueueContext(ctx, asynq.NewTask(TaskType, data), opts...)
	if err != nil {
		return upstream.Result{}, fmt.Errorf("enqueue %s: %w", cmd.Kind, err)
	}
	return upstream.Result{Success: true, Message: "queued " + info.ID + " on " + info.Queue}, nil
}
