package session

import (
	"context"
	"fmt"
	"time"

	"github.com/researchmesh/fedsession/internal/logx"
)

// FailureLabel is shown whenever any bootstrap stage fails. The user must
// restart attestation from scratch; nothing is retried.
const FailureLabel = "An error occurred while starting your session. Please contact your network administrator."

// Deps are the external collaborators the bootstrap pipeline drives.
type Deps struct {
	Tokens    TokenService
	Directory NodeDirectory
	Resources ResourceLoader
	Search    SearchEngine
	Snapshots SnapshotStore
	Confirm   Confirmer
	Bus       Dispatcher

	// Now is the clock used by the resume offer; nil means time.Now.
	Now func() time.Time
}

func (d Deps) dispatch(ev Event) {
	if d.Bus != nil {
		d.Bus.Dispatch(ev)
	}
}

func (d Deps) status(label string, percent int) {
	logx.Debugf("bootstrap %d%%: %s", percent, label)
	d.dispatch(Event{Kind: EventLoadStatus, Payload: LoadStatus{Label: label, Percent: percent}})
}

type stage struct {
	label   string
	percent int
	run     func(ctx context.Context, s Session) (Session, error)
}

func stages(deps Deps, att Attestation) []stage {
	return []stage{
		{"Signing in", 5, func(ctx context.Context, s Session) (Session, error) {
			st, err := deps.Tokens.SubmitAttestation(ctx, att)
			if err != nil {
				return s, fmt.Errorf("submit attestation: %w", err)
			}
			s.State = st
			deps.dispatch(Event{Kind: EventStateSet, Payload: st})
			return s, nil
		}},
		{"Locating home node", 10, func(ctx context.Context, s Session) (Session, error) {
			home, partners, err := deps.Directory.FetchHomeIdentity(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("fetch home identity: %w", err)
			}
			home.ID = 0
			home.IsHome = true
			home.Enabled = true
			s.Home = home
			s.Partners = partners
			return s, nil
		}},
		{"Contacting network partners", 20, func(ctx context.Context, s Session) (Session, error) {
			s.Responders, s.Failures = AggregateResponders(ctx, s.Home, s.Partners, s.State, s.Att, deps.Directory, deps.Bus)
			deps.dispatch(Event{Kind: EventRespondersSet, Payload: s.Responders})
			return s, nil
		}},
		{"Loading export options", 30, func(ctx context.Context, s Session) (Session, error) {
			export, err := deps.Resources.ExportOptions(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("load export options: %w", err)
			}
			s.Export = export
			return s, nil
		}},
		{"Loading import options", 40, func(ctx context.Context, s Session) (Session, error) {
			imp, err := deps.Resources.ImportOptions(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("load import options: %w", err)
			}
			s.Import = imp
			return s, nil
		}},
		{"Loading concepts", 50, func(ctx context.Context, s Session) (Session, error) {
			concepts, err := deps.Resources.RootConcepts(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("load root concepts: %w", err)
			}
			s.Concepts = concepts
			return s, nil
		}},
		{"Loading dataset catalog", 60, func(ctx context.Context, s Session) (Session, error) {
			datasets, err := deps.Resources.DatasetCatalog(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("load dataset catalog: %w", err)
			}
			if err := deps.Search.BuildCatalogIndex(datasets); err != nil {
				return s, fmt.Errorf("build catalog index: %w", err)
			}
			s.Datasets = datasets
			return s, nil
		}},
		{"Loading saved queries", 70, func(ctx context.Context, s Session) (Session, error) {
			saved, err := deps.Resources.SavedQueries(ctx, s.State)
			if err != nil {
				return s, fmt.Errorf("load saved queries: %w", err)
			}
			s.SavedQueries = saved
			return s, nil
		}},
		{"Loading plugin concepts", 80, func(ctx context.Context, s Session) (Session, error) {
			extra, err := deps.Resources.ExtensionConcepts(ctx, s.State, s.Import, s.SavedQueries)
			if err != nil {
				return s, fmt.Errorf("load extension concepts: %w", err)
			}
			s.Concepts = append(s.Concepts, extra...)
			return s, nil
		}},
		{"Preparing search", 100, func(ctx context.Context, s Session) (Session, error) {
			if err := deps.Search.Init(s.Concepts, s.Datasets, s.SavedQueries); err != nil {
				return s, fmt.Errorf("init search engine: %w", err)
			}
			return s, nil
		}},
	}
}

// Bootstrap runs the staged session establishment sequence. Stages run
// strictly in order; each dispatches its (label, percent) status before
// executing and returns the next session value rather than mutating shared
// state. Any stage error aborts the remainder, publishes the generic
// failure status with percent 0, and flags the attestation as errored.
func Bootstrap(ctx context.Context, deps Deps, att Attestation) (*Session, error) {
	deps.dispatch(Event{Kind: EventAttestationSubmitted, Payload: att.Username})

	s := Session{Att: att}
	for _, st := range stages(deps, att) {
		deps.status(st.label, st.percent)
		next, err := st.run(ctx, s)
		if err != nil {
			logx.Errorf("bootstrap failed at %q: %v", st.label, err)
			deps.status(FailureLabel, 0)
			deps.dispatch(Event{Kind: EventAttestationErrored, Payload: err})
			return nil, err
		}
		s = next
	}

	deps.dispatch(Event{Kind: EventAttestationComplete, Payload: s.State.Claims.AccessNonce})
	logx.Infof("session established: user=%s nodes=%d failures=%d",
		s.State.Claims.Subject, len(s.Responders), len(s.Failures))

	// The resume offer runs after completion and is not a bootstrap stage;
	// a broken snapshot store must not take down an established session.
	if err := offerResume(ctx, deps, &s); err != nil {
		logx.Warnf("previous session lookup failed: %v", err)
	}
	return &s, nil
}
