package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgergate/ledgergate/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditReplay re-inserts audit entries that could not be written
	// by the in-process retry queue.
	TaskAuditReplay = "audit:replay"
)

// AuditReplayPayload carries one audit entry through the durable queue.
type AuditReplayPayload struct {
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Target  string         `json:"target"`
	Outcome string         `json:"outcome"`
	Meta    map[string]any `json:"meta,omitempty"`
	At      time.Time      `json:"at"`
}

// NewAuditReplayTask constructs an Asynq task from an audit entry.
func NewAuditReplayTask(e audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(AuditReplayPayload{
		Actor:   e.Actor,
		Action:  e.Action,
		Target:  e.Target,
		Outcome: e.Outcome,
		Meta:    e.Meta,
		At:      e.At,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditReplay, data, asynq.MaxRetry(10)), nil
}

// NewAuditReplayHandler returns the handler that replays entries into the
// store. Insert failures are returned so asynq retries with backoff.
func NewAuditReplayHandler(store audit.StorePort) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditReplayPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return store.Insert(ctx, audit.Entry{
			Actor:   payload.Actor,
			Action:  payload.Action,
			Target:  payload.Target,
			Outcome: payload.Outcome,
			Meta:    payload.Meta,
			At:      payload.At,
		})
	}
}
