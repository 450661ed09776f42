package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// NewTaskHandler returns the asynq handler that performs queued commands.
// Failures are logged and skip retry.
func NewTaskHandler(sink upstream.Sink, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var cmd Command
		if err := json.Unmarshal(t.Payload(), &cmd); err != nil {
			logger.Error().Err(err).Str("task_type", t.Type()).Msg("outbox task payload invalid")
			return fmt.Errorf("decode command: %v: %w", err, asynq.SkipRetry)
		}
		res, err := Execute(ctx, sink, cmd)
		evt := logger.Info()
		if err != nil {
			evt = logger.Error().Err(err)
		}
		evt.Str("command_id", cmd.ID).
			Str("kind", string(cmd.Kind)).
			Str("session_id", cmd.SessionID).
			Bool("success", res.Success).
			Str("message", res.Message).
			Msg("outbox task processed")
		if err != nil {
			return fmt.Errorf("%s %s: %v: %w", cmd.Kind, cmd.ID, err, asynq.SkipRetry)
		}
		return nil
	}
}

// Register mounts the command handler on mux.
func Register(mux *asynq.ServeMux, sink upstream.Sink, logger zerolog.Logger) {
	mux.Handle(TaskType, NewTaskHandler(sink, logger))
}
