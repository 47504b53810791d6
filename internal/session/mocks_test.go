package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

func testState(federated bool) State {
	return State{
		Token: oauth2.Token{
			AccessToken: "tok-abc",
			Expiry:      time.Now().Add(30 * time.Minute),
		},
		Claims: Claims{
			Subject:          "researcher1",
			AccessNonce:      "nonce-xyz",
			FederatedAllowed: federated,
			ExpiresAt:        time.Now().Add(30 * time.Minute),
		},
	}
}

// fakeDirectory resolves partners from a canned map; addresses listed in
// fail produce errors. Tracks concurrent in-flight resolutions.
type fakeDirectory struct {
	mu        sync.Mutex
	home      NodeIdentity
	partners  []PartnerNode
	fail      map[int]error
	inFlight  int
	maxSeen   int
	resolved  []int
	holdUntil chan struct{} // when set, resolutions block here
}

func (d *fakeDirectory) FetchHomeIdentity(ctx context.Context, st State) (NodeIdentity, []PartnerNode, error) {
	return d.home, d.partners, nil
}

func (d *fakeDirectory) FetchNodeIdentity(ctx context.Context, st State, p PartnerNode) (NodeIdentity, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	hold := d.holdUntil
	d.mu.Unlock()

	if hold != nil {
		<-hold
	}

	d.mu.Lock()
	d.inFlight--
	d.resolved = append(d.resolved, p.ID)
	err := d.fail[p.ID]
	d.mu.Unlock()

	if err != nil {
		return NodeIdentity{}, &NodeError{PartnerID: p.ID, Err: err}
	}
	return NodeIdentity{Address: p.Address, Name: p.Name}, nil
}

type fakeTokens struct {
	state      State
	submitErr  error
	refreshErr error
	logoutRes  *LogoutResult
	logoutErr  error

	submitted   []Attestation
	refreshed   int
	logouts     int
	clearedLoc  int
	lastCleared bool
}

func (t *fakeTokens) SubmitAttestation(ctx context.Context, att Attestation) (State, error) {
	t.submitted = append(t.submitted, att)
	if t.submitErr != nil {
		return State{}, t.submitErr
	}
	return t.state, nil
}

func (t *fakeTokens) Refresh(ctx context.Context, st State) (State, error) {
	t.refreshed++
	if t.refreshErr != nil {
		return State{}, t.refreshErr
	}
	return t.state, nil
}

func (t *fakeTokens) Logout(ctx context.Context, st State) (*LogoutResult, error) {
	t.logouts++
	return t.logoutRes, t.logoutErr
}

func (t *fakeTokens) ClearLocalToken() {
	t.clearedLoc++
	t.lastCleared = true
}

type fakeResources struct {
	export ExportOptions
	imp    ImportOptions
	roots  []Concept
	sets   []Dataset
	saved  []SavedQuery
	extra  []Concept

	failAt string // name of the loader that should error

	// captured inputs of ExtensionConcepts
	extImp   ImportOptions
	extSaved []SavedQuery
}

func (r *fakeResources) err(name string) error {
	if r.failAt == name {
		return fmt.Errorf("%s unavailable", name)
	}
	return nil
}

func (r *fakeResources) ExportOptions(ctx context.Context, st State) (ExportOptions, error) {
	return r.export, r.err("export")
}

func (r *fakeResources) ImportOptions(ctx context.Context, st State) (ImportOptions, error) {
	return r.imp, r.err("import")
}

func (r *fakeResources) RootConcepts(ctx context.Context, st State) ([]Concept, error) {
	return r.roots, r.err("concepts")
}

func (r *fakeResources) DatasetCatalog(ctx context.Context, st State) ([]Dataset, error) {
	return r.sets, r.err("datasets")
}

func (r *fakeResources) SavedQueries(ctx context.Context, st State) ([]SavedQuery, error) {
	return r.saved, r.err("saved")
}

func (r *fakeResources) ExtensionConcepts(ctx context.Context, st State, imp ImportOptions, saved []SavedQuery) ([]Concept, error) {
	r.extImp = imp
	r.extSaved = saved
	return r.extra, r.err("extensions")
}

type fakeSearch struct {
	catalogBuilt bool
	initialized  bool
	initConcepts []Concept
	failInit     bool
}

func (s *fakeSearch) BuildCatalogIndex(datasets []Dataset) error {
	s.catalogBuilt = true
	return nil
}

func (s *fakeSearch) Init(concepts []Concept, datasets []Dataset, saved []SavedQuery) error {
	if s.failInit {
		return fmt.Errorf("index construction failed")
	}
	s.initialized = true
	s.initConcepts = concepts
	return nil
}

type fakeSnapshots struct {
	snap *Snapshot
	err  error
}

func (f *fakeSnapshots) Latest(ctx context.Context) (*Snapshot, error) {
	return f.snap, f.err
}

type fakeConfirm struct {
	answer  bool
	prompts []string
}

func (f *fakeConfirm) Confirm(prompt string) bool {
	f.prompts = append(f.prompts, prompt)
	return f.answer
}

type fakeRedirect struct {
	redirects []string
	reloads   int
}

func (f *fakeRedirect) Redirect(uri string) { f.redirects = append(f.redirects, uri) }
func (f *fakeRedirect) Reload()             { f.reloads++ }

// recorder captures every dispatched event in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Dispatch(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses() []LoadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LoadStatus
	for _, ev := range r.events {
		if ev.Kind == EventLoadStatus {
			out = append(out, ev.Payload.(LoadStatus))
		}
	}
	return out
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testDeps(dir *fakeDirectory, tokens *fakeTokens, res *fakeResources, rec *recorder) Deps {
	return Deps{
		Tokens:    tokens,
		Directory: dir,
		Resources: res,
		Search:    &fakeSearch{},
		Snapshots: &fakeSnapshots{},
		Bus:       rec,
	}
}
