package internal

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchmesh/fedsession/internal/hub"
	"github.com/researchmesh/fedsession/internal/hub/db"
	"github.com/researchmesh/fedsession/internal/netclient"
	"github.com/researchmesh/fedsession/internal/search"
	"github.com/researchmesh/fedsession/internal/session"
	"github.com/researchmesh/fedsession/internal/snapshot"
)

const testAdminToken = "test-admin-token-1234567890"

// setupTestHub starts a hub backed by an in-memory database and returns
// its URL alongside the store for direct provisioning.
func setupTestHub(t *testing.T) (*httptest.Server, *db.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &hub.Config{
		AdminToken:    testAdminToken,
		NodeName:      "Integration Home",
		AuthMechanism: "native",
		TokenTTL:      time.Hour,
	}
	ts := httptest.NewServer(hub.NewRouter(store, cfg))
	t.Cleanup(ts.Close)
	return ts, store
}

func seedCatalog(t *testing.T, store *db.Store) {
	t.Helper()
	if err := store.CreateUser("researcher1", "hunter22x", "demo", true); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.UpsertDataset(session.Dataset{ID: "labs", Name: "Lab Results", Terms: []string{"a1c", "ldl"}}); err != nil {
		t.Fatalf("UpsertDataset: %v", err)
	}
	if err := store.UpsertConcept(session.Concept{Key: `\Diag\`, Name: "Diagnoses"}); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	if err := store.UpsertConcept(session.Concept{Key: `\Ext\reg\`, Name: "Registry", Source: "registry"}); err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}
	if err := store.UpsertSavedQuery("researcher1", session.SavedQuery{ID: "q1", Name: "Diabetes cohort"}); err != nil {
		t.Fatalf("UpsertSavedQuery: %v", err)
	}
}

type autoConfirm struct{ answer bool }

func (a autoConfirm) Confirm(string) bool { return a.answer }

type nopRedirect struct{}

func (nopRedirect) Redirect(string) {}
func (nopRedirect) Reload()         {}

func newClientDeps(t *testing.T, hubURL string, confirm session.Confirmer, bus session.Dispatcher) (session.Deps, *netclient.Client, *snapshot.Store) {
	t.Helper()
	dir := t.TempDir()
	client := netclient.New(hubURL, netclient.WithTokenPath(filepath.Join(dir, "token.json")))
	snaps, err := snapshot.NewStore(filepath.Join(dir, "snapshots.db"))
	if err != nil {
		t.Fatalf("snapshot.NewStore: %v", err)
	}
	t.Cleanup(func() { snaps.Close() })

	return session.Deps{
		Tokens:    client,
		Directory: client,
		Resources: client,
		Search:    search.NewEngine(),
		Snapshots: snaps,
		Confirm:   confirm,
		Bus:       bus,
	}, client, snaps
}

func TestBootstrapAgainstHub(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)

	var statuses []session.LoadStatus
	bus := session.NewBus()
	bus.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLoadStatus {
			statuses = append(statuses, ev.Payload.(session.LoadStatus))
		}
	})

	deps, _, _ := newClientDeps(t, ts.URL, autoConfirm{}, bus)
	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "hunter22x",
		Project:  "demo",
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if s.State.Claims.Subject != "researcher1" {
		t.Fatalf("subject = %q", s.State.Claims.Subject)
	}
	if !s.Home.IsHome || s.Home.ID != 0 || s.Home.Name != "Integration Home" {
		t.Fatalf("home = %+v", s.Home)
	}
	// No partners provisioned: the home node is the only responder.
	if len(s.Responders) != 1 || len(s.Failures) != 0 {
		t.Fatalf("responders = %+v failures = %+v", s.Responders, s.Failures)
	}
	if len(s.Datasets) != 1 || len(s.SavedQueries) != 1 {
		t.Fatalf("datasets = %d saved = %d", len(s.Datasets), len(s.SavedQueries))
	}
	// Root concepts plus the registry extension concept.
	if len(s.Concepts) != 2 {
		t.Fatalf("concepts = %+v", s.Concepts)
	}
	if !s.Import.Enabled || len(s.Import.Sources) != 1 {
		t.Fatalf("import = %+v", s.Import)
	}
	if len(s.Export.Formats) == 0 {
		t.Fatalf("export = %+v", s.Export)
	}

	if len(statuses) != 10 {
		t.Fatalf("got %d status updates, want 10", len(statuses))
	}
	if statuses[len(statuses)-1].Percent != 100 {
		t.Fatalf("final percent = %d", statuses[len(statuses)-1].Percent)
	}
}

func TestBootstrapBadCredentials(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)

	var failed bool
	bus := session.NewBus()
	bus.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventAttestationErrored {
			failed = true
		}
	})

	deps, _, _ := newClientDeps(t, ts.URL, autoConfirm{}, bus)
	_, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "wrong-password",
	})
	if err == nil {
		t.Fatal("expected bootstrap to fail")
	}
	if !failed {
		t.Fatal("expected errored attestation event")
	}
}

func TestBootstrapWithUnreachablePartner(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)
	if err := store.UpsertPartner(session.PartnerNode{ID: 1, Address: "http://127.0.0.1:1/", Name: "Down"}); err != nil {
		t.Fatalf("UpsertPartner: %v", err)
	}

	var nodeFailures int
	bus := session.NewBus()
	bus.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventNodeFailure {
			nodeFailures++
		}
	})

	deps, _, _ := newClientDeps(t, ts.URL, autoConfirm{}, bus)
	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "hunter22x",
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// The unreachable partner is dropped, not fatal.
	if len(s.Responders) != 1 {
		t.Fatalf("responders = %+v", s.Responders)
	}
	if len(s.Failures) != 1 || s.Failures[0].PartnerID != 1 {
		t.Fatalf("failures = %+v", s.Failures)
	}
	if nodeFailures != 1 {
		t.Fatalf("node failure events = %d", nodeFailures)
	}
}

func TestBootstrapSecondHubAsPartner(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)

	// A second hub stands in for a partner node; only its public identity
	// endpoint is exercised.
	partnerStore, err := db.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { partnerStore.Close() })
	partner := httptest.NewServer(hub.NewRouter(partnerStore, &hub.Config{
		AdminToken:    testAdminToken,
		NodeName:      "Partner East",
		AuthMechanism: "native",
		TokenTTL:      time.Hour,
	}))
	t.Cleanup(partner.Close)

	if err := store.UpsertPartner(session.PartnerNode{ID: 1, Address: partner.URL + "/", Name: "East"}); err != nil {
		t.Fatalf("UpsertPartner: %v", err)
	}

	deps, _, _ := newClientDeps(t, ts.URL, autoConfirm{}, session.NewBus())
	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "hunter22x",
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if len(s.Responders) != 2 {
		t.Fatalf("responders = %+v", s.Responders)
	}
	if s.Responders[0].ID != 0 || !s.Responders[0].IsHome {
		t.Fatalf("first responder must be home: %+v", s.Responders[0])
	}
	if s.Responders[1].ID != 1 || s.Responders[1].Name != "Partner East" {
		t.Fatalf("partner responder = %+v", s.Responders[1])
	}
}

func TestBootstrapIdentifiedStaysHome(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)
	if err := store.UpsertPartner(session.PartnerNode{ID: 1, Address: "http://127.0.0.1:1/", Name: "Down"}); err != nil {
		t.Fatalf("UpsertPartner: %v", err)
	}

	deps, _, _ := newClientDeps(t, ts.URL, autoConfirm{}, session.NewBus())
	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username:   "researcher1",
		Password:   "hunter22x",
		Identified: true,
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	// Identified sessions never contact partners, so the dead partner
	// cannot fail anything.
	if len(s.Responders) != 1 || len(s.Failures) != 0 {
		t.Fatalf("responders = %+v failures = %+v", s.Responders, s.Failures)
	}
}

func TestBootstrapResumesRecentSnapshot(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)

	deps, _, snaps := newClientDeps(t, ts.URL, autoConfirm{answer: true}, session.NewBus())
	err := snaps.Save(context.Background(), session.Snapshot{
		Query:   "diabetes cohort",
		Panels:  []session.Panel{{Name: "Criteria", Items: []string{`\Diag\`}}},
		SavedAt: time.Now().Add(-5 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "hunter22x",
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if s.Query != "diabetes cohort" || len(s.Panels) != 1 {
		t.Fatalf("resumed state = query %q panels %+v", s.Query, s.Panels)
	}
}

func TestRefreshAndLogoutLifecycle(t *testing.T) {
	ts, store := setupTestHub(t)
	seedCatalog(t, store)

	deps, client, _ := newClientDeps(t, ts.URL, autoConfirm{}, session.NewBus())
	s, err := session.Bootstrap(context.Background(), deps, session.Attestation{
		Username: "researcher1",
		Password: "hunter22x",
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctrl := &session.Controller{Tokens: client, Redirect: nopRedirect{}, AuthMechanism: "native"}
	next, err := ctrl.Refresh(context.Background(), s.State)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.Token.AccessToken == s.State.Token.AccessToken {
		t.Fatal("refresh must rotate the token")
	}

	// The pre-refresh token is dead: a refresh with it must fail.
	if _, err := ctrl.Refresh(context.Background(), s.State); err == nil {
		t.Fatal("expected refresh with retired token to fail")
	}

	ctrl.Logout(context.Background(), next)
	if _, err := client.LoadState(); err == nil {
		t.Fatal("expected cached token to be cleared after logout")
	}
}
