package audit

import "time"

// Decision outcomes recorded in the trail.
const (
	OutcomeAllow = "ALLOW"
	OutcomeDeny  = "DENY"
	OutcomeError = "ERROR"
)

// Entry is one append-only audit record: who did what to which target, and
// how it went.
type Entry struct {
	ID      int64          `json:"id"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Target  string         `json:"target"`
	Outcome string         `json:"outcome"`
	Meta    map[string]any `json:"meta,omitempty"`
	At      time.Time      `json:"at"`
}
