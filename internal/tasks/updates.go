package tasks

import (
	"fmt"

	"github.com/desertthunder/respect/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	State     State  // Current state of the run
	Step      int    // Current step number within the state
	Total     int    // Total steps in this state, zero when unknown
	Processed int    // Items processed so far
	Failed    int    // Items failed so far
	Message   string // Human-readable message for display
}

// State is a step of the sync state machine.
type State int

const (
	Init State = iota
	TokenReady
	Fetching
	Extracting
	Persisting
	Logged
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case TokenReady:
		return "token_ready"
	case Fetching:
		return "fetching"
	case Extracting:
		return "extracting"
	case Persisting:
		return "persisting"
	case Logged:
		return "logged"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool { return s == Done || s == Failed }

func startedUpdate(t models.SyncType) ProgressUpdate {
	return ProgressUpdate{State: Init, Message: fmt.Sprintf("Starting %s sync...", t)}
}

func tokenReadyUpdate() ProgressUpdate {
	return ProgressUpdate{State: TokenReady, Message: "Credential verified"}
}

func fetchingPageUpdate(what string, page, fetched int) ProgressUpdate {
	return ProgressUpdate{
		State:   Fetching,
		Step:    page,
		Message: fmt.Sprintf("Fetching %s (page %d, %d so far)...", what, page, fetched),
	}
}

func extractingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   Extracting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reading tracks of %s...", step, total, name),
	}
}

func persistingUpdate(c *counters, step, total int, what string) ProgressUpdate {
	return ProgressUpdate{
		State:     Persisting,
		Step:      step,
		Total:     total,
		Processed: c.processed,
		Failed:    c.failed,
		Message:   fmt.Sprintf("[%d/%d] Saving %s...", step, total, what),
	}
}

func loggedUpdate(res SyncResult) ProgressUpdate {
	return ProgressUpdate{
		State:     Logged,
		Processed: res.Processed,
		Failed:    res.Failed,
		Message:   "Sync outcome recorded",
	}
}

func finishedUpdate(res SyncResult) ProgressUpdate {
	u := ProgressUpdate{State: Done, Processed: res.Processed, Failed: res.Failed}
	if res.Success {
		u.Message = fmt.Sprintf("✓ %d processed, %d failed", res.Processed, res.Failed)
	} else {
		u.State = Failed
		u.Message = fmt.Sprintf("✗ %s", res.Error)
	}
	return u
}
