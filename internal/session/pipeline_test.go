package session

import (
	"context"
	"errors"
	"testing"
)

func fullResources() *fakeResources {
	return &fakeResources{
		export: ExportOptions{Formats: []string{"csv"}, RowLimit: 10000},
		imp:    ImportOptions{Sources: []string{"registry"}, Enabled: true},
		roots:  []Concept{{Key: `\Demographics\`, Name: "Demographics"}},
		sets:   []Dataset{{ID: "ds1", Name: "Labs", Terms: []string{"hemoglobin"}}},
		saved:  []SavedQuery{{ID: "q1", Name: "Diabetics over 60"}},
		extra:  []Concept{{Key: `\Plugin\x`, Name: "Imported cohort", Source: "registry"}},
	}
}

func TestBootstrapHappyPath(t *testing.T) {
	dir := &fakeDirectory{
		home:     testHome(),
		partners: testPartners(2),
	}
	tokens := &fakeTokens{state: testState(true)}
	res := fullResources()
	rec := &recorder{}
	deps := testDeps(dir, tokens, res, rec)
	search := &fakeSearch{}
	deps.Search = search

	s, err := Bootstrap(context.Background(), deps, Attestation{Username: "researcher1"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if s.Home.ID != 0 || !s.Home.IsHome {
		t.Fatalf("home identity wrong: %+v", s.Home)
	}
	if len(s.Responders) != 3 {
		t.Fatalf("expected home + 2 responders, got %d", len(s.Responders))
	}
	if !search.catalogBuilt || !search.initialized {
		t.Fatalf("search engine not driven: catalog=%v init=%v", search.catalogBuilt, search.initialized)
	}
	// Extension concepts land after the root concepts.
	if len(s.Concepts) != 2 || s.Concepts[1].Source != "registry" {
		t.Fatalf("extension concepts not appended: %+v", s.Concepts)
	}
	// Stage 9 must see the import options and saved queries loaded earlier.
	if !res.extImp.Enabled || len(res.extSaved) != 1 {
		t.Fatalf("extension loader missing stage inputs: imp=%+v saved=%d", res.extImp, len(res.extSaved))
	}
}

func TestBootstrapProgressMonotone(t *testing.T) {
	dir := &fakeDirectory{home: testHome(), partners: testPartners(1)}
	tokens := &fakeTokens{state: testState(true)}
	rec := &recorder{}
	deps := testDeps(dir, tokens, fullResources(), rec)

	if _, err := Bootstrap(context.Background(), deps, Attestation{}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	statuses := rec.statuses()
	if len(statuses) == 0 {
		t.Fatal("no load statuses dispatched")
	}
	prev := -1
	for _, st := range statuses {
		if st.Percent < prev {
			t.Fatalf("progress went backwards: %d after %d", st.Percent, prev)
		}
		prev = st.Percent
	}
	if statuses[len(statuses)-1].Percent != 100 {
		t.Fatalf("successful bootstrap must end at 100, got %d", statuses[len(statuses)-1].Percent)
	}
}

func TestBootstrapStageFailure(t *testing.T) {
	dir := &fakeDirectory{home: testHome(), partners: testPartners(1)}
	tokens := &fakeTokens{state: testState(true)}
	res := fullResources()
	res.failAt = "datasets"
	rec := &recorder{}
	deps := testDeps(dir, tokens, res, rec)

	s, err := Bootstrap(context.Background(), deps, Attestation{})
	if err == nil {
		t.Fatal("expected stage failure to surface")
	}
	if s != nil {
		t.Fatal("no partial session on failure")
	}

	statuses := rec.statuses()
	last := statuses[len(statuses)-1]
	if last.Percent != 0 || last.Label != FailureLabel {
		t.Fatalf("terminal status should be the generic failure at 0%%, got %+v", last)
	}
	// Later stages must not have run.
	for _, st := range statuses {
		if st.Percent > 60 {
			t.Fatalf("stage after the failure was dispatched: %+v", st)
		}
	}

	var errored bool
	for _, k := range rec.kinds() {
		if k == EventAttestationErrored {
			errored = true
		}
		if k == EventAttestationComplete {
			t.Fatal("attestation must not complete after a stage failure")
		}
	}
	if !errored {
		t.Fatal("missing attestation-errored event")
	}
}

func TestBootstrapSubmitFailure(t *testing.T) {
	tokens := &fakeTokens{submitErr: errors.New("bad credentials")}
	rec := &recorder{}
	deps := testDeps(&fakeDirectory{}, tokens, fullResources(), rec)

	if _, err := Bootstrap(context.Background(), deps, Attestation{Username: "u"}); err == nil {
		t.Fatal("expected error from failed attestation")
	}
	statuses := rec.statuses()
	if statuses[len(statuses)-1].Percent != 0 {
		t.Fatalf("terminal percent should be 0, got %d", statuses[len(statuses)-1].Percent)
	}
}

func TestBootstrapCompleteCarriesNonce(t *testing.T) {
	dir := &fakeDirectory{home: testHome()}
	tokens := &fakeTokens{state: testState(true)}
	rec := &recorder{}
	deps := testDeps(dir, tokens, fullResources(), rec)

	if _, err := Bootstrap(context.Background(), deps, Attestation{}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	for _, ev := range rec.events {
		if ev.Kind == EventAttestationComplete {
			if ev.Payload.(string) != "nonce-xyz" {
				t.Fatalf("completion must carry the stage-1 access nonce, got %v", ev.Payload)
			}
			return
		}
	}
	t.Fatal("missing attestation-complete event")
}

func TestBootstrapResponderFailureIsNotFatal(t *testing.T) {
	dir := &fakeDirectory{
		home:     testHome(),
		partners: testPartners(3),
		fail:     map[int]error{1: errors.New("timeout")},
	}
	tokens := &fakeTokens{state: testState(true)}
	rec := &recorder{}
	deps := testDeps(dir, tokens, fullResources(), rec)

	s, err := Bootstrap(context.Background(), deps, Attestation{})
	if err != nil {
		t.Fatalf("partner failure must not abort bootstrap: %v", err)
	}
	if len(s.Responders) != 3 {
		t.Fatalf("expected home + 2 surviving responders, got %d", len(s.Responders))
	}
	if len(s.Failures) != 1 || s.Failures[0].PartnerID != 1 {
		t.Fatalf("failures not recorded: %+v", s.Failures)
	}
}
