// Package outreach derives the state of background outreach runs from the
// assistant messages that report them.
package outreach

import (
	"sync"

	"bondedlink/internal/link/model"
)

// Latest scans messages in display order (newest first) and returns the run
// reported by the first assistant message that carries a run id.
func Latest(messages []model.Message) *model.OutreachState {
	for _, m := range messages {
		if m.Role != model.RoleAssistant {
			continue
		}
		runID := m.Metadata.FirstText("run_id", "runId", "outreach_run_id")
		if runID == "" {
			continue
		}
		return &model.OutreachState{
			RunID:  runID,
			Status: m.Metadata.FirstText("outreach_status", "status"),
		}
	}
	return nil
}

// Tracker remembers run ids learned outside the transcript, such as the one
// returned when an outreach run is started.
type Tracker struct {
	mu       sync.Mutex
	observed string
}

func (t *Tracker) Observe(runID string) {
	if runID == "" {
		return
	}
	t.mu.Lock()
	t.observed = runID
	t.mu.Unlock()
}

// ActiveRunID prefers the run found in the transcript and falls back to the
// last observed one. An empty result means no status check is possible.
func (t *Tracker) ActiveRunID(messages []model.Message) string {
	if latest := Latest(messages); latest != nil {
		return latest.RunID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.observed = ""
	t.mu.Unlock()
}
