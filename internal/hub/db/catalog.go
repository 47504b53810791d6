package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/researchmesh/fedsession/internal/session"
)

// UpsertPartner stores or replaces a configured partner node.
func (s *Store) UpsertPartner(p session.PartnerNode) error {
	_, err := s.db.Exec(
		`INSERT INTO partners (id, address, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET address = excluded.address, name = excluded.name`,
		p.ID, p.Address, p.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert partner: %w", err)
	}
	return nil
}

// ListPartners returns all configured partners ordered by id.
func (s *Store) ListPartners() ([]session.PartnerNode, error) {
	rows, err := s.db.Query(`SELECT id, address, name FROM partners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query partners: %w", err)
	}
	defer rows.Close()

	var out []session.PartnerNode
	for rows.Next() {
		var p session.PartnerNode
		if err := rows.Scan(&p.ID, &p.Address, &p.Name); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertDataset stores or replaces a catalog dataset.
func (s *Store) UpsertDataset(ds session.Dataset) error {
	terms, err := json.Marshal(ds.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO datasets (id, name, terms) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, terms = excluded.terms`,
		ds.ID, ds.Name, string(terms),
	)
	if err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}
	return nil
}

// ListDatasets returns the dataset catalog.
func (s *Store) ListDatasets() ([]session.Dataset, error) {
	rows, err := s.db.Query(`SELECT id, name, terms FROM datasets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []session.Dataset
	for rows.Next() {
		var (
			ds    session.Dataset
			terms string
		)
		if err := rows.Scan(&ds.ID, &ds.Name, &terms); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		if err := json.Unmarshal([]byte(terms), &ds.Terms); err != nil {
			return nil, fmt.Errorf("unmarshal terms for %s: %w", ds.ID, err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// UpsertConcept stores or replaces an ontology concept.
func (s *Store) UpsertConcept(c session.Concept) error {
	_, err := s.db.Exec(
		`INSERT INTO concepts (key, name, source) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET name = excluded.name, source = excluded.source`,
		c.Key, c.Name, c.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert concept: %w", err)
	}
	return nil
}

// ListRootConcepts returns hub-native concepts (no extension source).
func (s *Store) ListRootConcepts() ([]session.Concept, error) {
	return s.listConcepts(`SELECT key, name, source FROM concepts WHERE source = '' ORDER BY key`)
}

// ListConceptsBySources returns concepts contributed by the named
// extension sources.
func (s *Store) ListConceptsBySources(sources []string) ([]session.Concept, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sources)), ",")
	args := make([]any, len(sources))
	for i, src := range sources {
		args[i] = src
	}
	return s.listConcepts(
		`SELECT key, name, source FROM concepts WHERE source IN (`+placeholders+`) ORDER BY key`,
		args...,
	)
}

// ListConceptSources returns the distinct extension sources that have
// contributed concepts.
func (s *Store) ListConceptSources() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT source FROM concepts WHERE source != '' ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query concept sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan concept source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) listConcepts(query string, args ...any) ([]session.Concept, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()

	var out []session.Concept
	for rows.Next() {
		var c session.Concept
		if err := rows.Scan(&c.Key, &c.Name, &c.Source); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertSavedQuery stores or replaces a user's saved query.
func (s *Store) UpsertSavedQuery(username string, q session.SavedQuery) error {
	_, err := s.db.Exec(
		`INSERT INTO saved_queries (id, username, name, definition) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, definition = excluded.definition`,
		q.ID, username, q.Name, q.Definition,
	)
	if err != nil {
		return fmt.Errorf("upsert saved query: %w", err)
	}
	return nil
}

// ListSavedQueries returns a user's saved queries.
func (s *Store) ListSavedQueries(username string) ([]session.SavedQuery, error) {
	rows, err := s.db.Query(
		`SELECT id, name, definition FROM saved_queries WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("query saved queries: %w", err)
	}
	defer rows.Close()

	var out []session.SavedQuery
	for rows.Next() {
		var q session.SavedQuery
		if err := rows.Scan(&q.ID, &q.Name, &q.Definition); err != nil {
			return nil, fmt.Errorf("scan saved query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
