package search

import (
	"testing"

	"github.com/researchmesh/fedsession/internal/session"
)

func testDatasets() []session.Dataset {
	return []session.Dataset{
		{ID: "labs", Name: "Laboratory Results", Terms: []string{"hemoglobin", "a1c", "creatinine"}},
		{ID: "meds", Name: "Medications", Terms: []string{"metformin", "insulin"}},
	}
}

func TestCatalogIndexMatches(t *testing.T) {
	e := NewEngine()
	if err := e.BuildCatalogIndex(testDatasets()); err != nil {
		t.Fatalf("BuildCatalogIndex: %v", err)
	}

	refs := e.FindInCatalog("patients with elevated hemoglobin a1c")
	if len(refs) != 1 {
		t.Fatalf("expected one dataset ref, got %+v", refs)
	}
	if refs[0].Kind != "dataset" || refs[0].ID != "labs" {
		t.Fatalf("wrong ref: %+v", refs[0])
	}
}

func TestCatalogIndexCaseInsensitive(t *testing.T) {
	e := NewEngine()
	if err := e.BuildCatalogIndex(testDatasets()); err != nil {
		t.Fatalf("BuildCatalogIndex: %v", err)
	}
	if refs := e.FindInCatalog("on METFORMIN since 2019"); len(refs) != 1 || refs[0].ID != "meds" {
		t.Fatalf("case-insensitive match failed: %+v", refs)
	}
}

func TestFullIndexSpansAllSources(t *testing.T) {
	e := NewEngine()
	concepts := []session.Concept{{Key: `\Dx\E11\`, Name: "Type 2 diabetes"}}
	saved := []session.SavedQuery{{ID: "q9", Name: "Diabetics over 60"}}
	if err := e.Init(concepts, testDatasets(), saved); err != nil {
		t.Fatalf("Init: %v", err)
	}

	refs := e.Find("type 2 diabetes treated with insulin, see diabetics over 60")
	kinds := map[string]bool{}
	for _, r := range refs {
		kinds[r.Kind] = true
	}
	for _, want := range []string{"concept", "dataset", "query"} {
		if !kinds[want] {
			t.Fatalf("missing %s match in %+v", want, refs)
		}
	}
}

func TestFindBeforeInit(t *testing.T) {
	e := NewEngine()
	if refs := e.Find("anything"); refs != nil {
		t.Fatalf("expected nil before Init, got %+v", refs)
	}
}

func TestEmptyCatalog(t *testing.T) {
	e := NewEngine()
	if err := e.BuildCatalogIndex(nil); err != nil {
		t.Fatalf("BuildCatalogIndex: %v", err)
	}
	if refs := e.FindInCatalog("hemoglobin"); refs != nil {
		t.Fatalf("expected no matches on empty catalog, got %+v", refs)
	}
}

func TestDuplicateTermsDeduped(t *testing.T) {
	e := NewEngine()
	datasets := []session.Dataset{
		{ID: "labs", Name: "Labs", Terms: []string{"glucose", "glucose"}},
	}
	if err := e.BuildCatalogIndex(datasets); err != nil {
		t.Fatalf("BuildCatalogIndex: %v", err)
	}
	refs := e.FindInCatalog("fasting glucose and random glucose")
	if len(refs) != 1 {
		t.Fatalf("expected deduped single ref, got %+v", refs)
	}
}
