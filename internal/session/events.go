package session

import "sync"

// EventKind names an observable session state transition.
type EventKind string

const (
	EventAttestationSubmitted EventKind = "attestation.submitted"
	EventAttestationErrored   EventKind = "attestation.errored"
	EventAttestationComplete  EventKind = "attestation.complete"
	EventStateSet             EventKind = "session.state_set"
	EventLoadStatus           EventKind = "session.load_status"
	EventRespondersSet        EventKind = "session.responders_set"
	EventNodeFailure          EventKind = "session.node_failure"
	EventConfirmRequested     EventKind = "session.confirm_requested"
	EventSnapshotRestored     EventKind = "session.snapshot_restored"
)

// Event is one named state transition with its kind-specific payload:
// LoadStatus for EventLoadStatus, []NodeIdentity for EventRespondersSet,
// ResolveFailure for EventNodeFailure, string (access nonce) for
// EventAttestationComplete, string (prompt) for EventConfirmRequested,
// *Snapshot for EventSnapshotRestored, error for EventAttestationErrored.
type Event struct {
	Kind    EventKind
	Payload any
}

// Dispatcher receives session state transitions.
type Dispatcher interface {
	Dispatch(ev Event)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(Event)

func (f DispatcherFunc) Dispatch(ev Event) { f(ev) }

// Bus fans events out to subscribers in subscription order. Dispatch is
// synchronous; slow subscribers delay the pipeline.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Dispatch(ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
