package session

import (
	"context"
	"fmt"
	"time"
)

// resumeWindow bounds how old a previous session may be before it is
// silently discarded instead of offered.
const resumeWindow = 480 * time.Minute

// describeElapsed renders whole minutes since a snapshot as display text.
func describeElapsed(minutes int) string {
	switch {
	case minutes <= 0:
		return "less than a minute ago"
	case minutes == 1:
		return "about 1 minute ago"
	default:
		return fmt.Sprintf("about %d minutes ago", minutes)
	}
}

// offerResume checks for a recent previous-session snapshot and, when one
// exists inside the freshness window, asks the user whether to restore it.
// Declining is a true no-op; stale snapshots are never offered.
func offerResume(ctx context.Context, deps Deps, s *Session) error {
	if deps.Snapshots == nil {
		return nil
	}
	snap, err := deps.Snapshots.Latest(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	elapsed := now().Sub(snap.SavedAt)
	if elapsed >= resumeWindow {
		return nil
	}

	prompt := fmt.Sprintf("You have a previous session from %s. Resume where you left off?",
		describeElapsed(int(elapsed.Minutes())))
	deps.dispatch(Event{Kind: EventConfirmRequested, Payload: prompt})

	if deps.Confirm == nil || !deps.Confirm.Confirm(prompt) {
		return nil
	}
	s.Query = snap.Query
	s.Panels = snap.Panels
	s.Filters = snap.Filters
	deps.dispatch(Event{Kind: EventSnapshotRestored, Payload: snap})
	return nil
}
