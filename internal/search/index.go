// Package search provides the session term index: a multi-pattern matcher
// over concept, dataset and saved-query display terms, used to resolve
// free-text input to catalog items.
package search

import (
	"sort"
	"strings"
	"sync"

	aho "github.com/petar-dambovaliev/aho-corasick"

	"github.com/researchmesh/fedsession/internal/session"
)

// Ref points a matched term back at the catalog item it came from.
type Ref struct {
	Kind string // "concept", "dataset" or "query"
	ID   string
	Name string
}

type index struct {
	matcher aho.AhoCorasick
	terms   []string
	refs    map[string][]Ref
}

func buildIndex(termRefs map[string][]Ref) *index {
	terms := make([]string, 0, len(termRefs))
	for term := range termRefs {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	idx := &index{terms: terms, refs: termRefs}
	if len(terms) > 0 {
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			AsciiCaseInsensitive: true,
			MatchKind:            aho.LeftMostLongestMatch,
		})
		idx.matcher = builder.Build(terms)
	}
	return idx
}

func (idx *index) find(text string) []Ref {
	if idx == nil || len(idx.terms) == 0 || text == "" {
		return nil
	}
	var out []Ref
	seen := make(map[string]bool)
	for _, m := range idx.matcher.FindAll(text) {
		term := idx.terms[m.Pattern()]
		for _, ref := range idx.refs[term] {
			key := ref.Kind + ":" + ref.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ref)
		}
	}
	return out
}

// Engine is the session-wide search engine. The catalog index is built
// during bootstrap stage 7 from the dataset catalog alone; Init replaces
// the full index over concepts, datasets and saved queries at stage 10.
type Engine struct {
	mu      sync.RWMutex
	catalog *index
	full    *index
}

func NewEngine() *Engine {
	return &Engine{}
}

func addTerm(termRefs map[string][]Ref, term string, ref Ref) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	termRefs[term] = append(termRefs[term], ref)
}

// BuildCatalogIndex indexes dataset names and their declared terms.
func (e *Engine) BuildCatalogIndex(datasets []session.Dataset) error {
	termRefs := make(map[string][]Ref)
	for _, ds := range datasets {
		ref := Ref{Kind: "dataset", ID: ds.ID, Name: ds.Name}
		addTerm(termRefs, ds.Name, ref)
		for _, term := range ds.Terms {
			addTerm(termRefs, term, ref)
		}
	}
	idx := buildIndex(termRefs)

	e.mu.Lock()
	e.catalog = idx
	e.mu.Unlock()
	return nil
}

// Init builds the full session index. A later Init replaces the whole
// index; partial rebuilds are not supported.
func (e *Engine) Init(concepts []session.Concept, datasets []session.Dataset, saved []session.SavedQuery) error {
	termRefs := make(map[string][]Ref)
	for _, c := range concepts {
		addTerm(termRefs, c.Name, Ref{Kind: "concept", ID: c.Key, Name: c.Name})
	}
	for _, ds := range datasets {
		ref := Ref{Kind: "dataset", ID: ds.ID, Name: ds.Name}
		addTerm(termRefs, ds.Name, ref)
		for _, term := range ds.Terms {
			addTerm(termRefs, term, ref)
		}
	}
	for _, q := range saved {
		addTerm(termRefs, q.Name, Ref{Kind: "query", ID: q.ID, Name: q.Name})
	}
	idx := buildIndex(termRefs)

	e.mu.Lock()
	e.full = idx
	e.mu.Unlock()
	return nil
}

// FindInCatalog matches free text against the dataset catalog index.
func (e *Engine) FindInCatalog(text string) []Ref {
	e.mu.RLock()
	idx := e.catalog
	e.mu.RUnlock()
	return idx.find(text)
}

// Find matches free text against the full session index. Returns nil
// before Init has run.
func (e *Engine) Find(text string) []Ref {
	e.mu.RLock()
	idx := e.full
	e.mu.RUnlock()
	return idx.find(text)
}
