// Package kgstore persists curated (head, relation, tail) relationship
// triples with their evidence PMIDs, distinct from the statistically
// inferred relationships km.Relationship scores at query time. A
// kgstore.Store answers "is there a known relation between these two
// terms" in either direction, not "how significant is their
// co-occurrence".
package kgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/tokenize"
)

// maxEvidencePMIDs caps how many evidence PMIDs a lookup returns per
// relationship, keeping responses bounded regardless of how much
// evidence a single curated triple accumulated.
const maxEvidencePMIDs = 100

// Relationship is one curated (head, relation, tail) triple.
type Relationship struct {
	Head     string
	HeadType string
	Relation string
	Tail     string
	TailType string
	Evidence []int64
	Source   string
}

// Match is a Relationship returned from a lookup, reoriented so A/B
// reflect the order the caller queried in rather than the order the
// triple was stored in.
type Match struct {
	ATerm, AType string
	BTerm, BType string
	Relation     string
	PMIDs        []int64
	Source       string
}

// YearLookup resolves a PMID's publication year, used to censor
// evidence PMIDs by year the same way query.Engine does for index hits.
type YearLookup interface {
	Year(pmid int64) (int, bool)
}

// Store persists curated relationships in a sqlite database and caches
// lookups by (a, b) term pair, mirroring the source knowledge graph's
// in-process result cache.
type Store struct {
	db *sql.DB

	cacheMu sync.RWMutex
	cache   map[[2]string][]Match
}

// Open opens (creating if needed) a kgstore database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open kg store: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable full synchronous: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[[2]string][]Match)}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS relationships (
	head      TEXT NOT NULL,
	head_type TEXT NOT NULL,
	relation  TEXT NOT NULL,
	tail      TEXT NOT NULL,
	tail_type TEXT NOT NULL,
	evidence  TEXT NOT NULL,
	source    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_head ON relationships(head);
CREATE INDEX IF NOT EXISTS idx_relationships_tail ON relationships(tail);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// AddRelationships inserts curated triples, sanitizing head/tail terms
// the same way the query engine sanitizes boolean-query leaf terms so
// lookups line up regardless of how a caller capitalizes or punctuates
// a term.
func (s *Store) AddRelationships(ctx context.Context, rels []Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO relationships (head, head_type, relation, tail, tail_type, evidence, source)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rels {
		evidence, err := json.Marshal(r.Evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence for %q/%q: %w", r.Head, r.Tail, err)
		}
		if _, err := stmt.ExecContext(ctx,
			tokenize.SanitizeTerm(r.Head), r.HeadType, r.Relation,
			tokenize.SanitizeTerm(r.Tail), r.TailType, string(evidence), r.Source,
		); err != nil {
			return fmt.Errorf("insert relationship %q/%q: %w", r.Head, r.Tail, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache = make(map[[2]string][]Match)
	s.cacheMu.Unlock()
	return nil
}

// Lookup returns every curated relationship between aTerm and bTerm in
// either stored orientation, optionally censoring evidence PMIDs to a
// publication-year range via years. A relationship whose evidence is
// fully censored away is dropped from the result rather than returned
// with an empty PMID list.
func (s *Store) Lookup(ctx context.Context, aTerm, bTerm string, censorLower, censorUpper int, years YearLookup) ([]Match, error) {
	aTerm = tokenize.SanitizeTerm(aTerm)
	bTerm = tokenize.SanitizeTerm(bTerm)
	key := [2]string{aTerm, bTerm}

	if censorLower == 0 && censorUpper == 0 {
		s.cacheMu.RLock()
		cached, ok := s.cache[key]
		s.cacheMu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT head, head_type, relation, tail, tail_type, evidence, source
FROM relationships
WHERE (head = ? AND tail = ?) OR (head = ? AND tail = ?)
`, aTerm, bTerm, bTerm, aTerm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var head, headType, relation, tail, tailType, evidenceJSON, source string
		if err := rows.Scan(&head, &headType, &relation, &tail, &tailType, &evidenceJSON, &source); err != nil {
			return nil, err
		}

		var pmids []int64
		if evidenceJSON != "" {
			if err := json.Unmarshal([]byte(evidenceJSON), &pmids); err != nil {
				return nil, fmt.Errorf("decode evidence for %q/%q: %w", head, tail, err)
			}
		}
		if len(pmids) > maxEvidencePMIDs {
			pmids = pmids[:maxEvidencePMIDs]
		}

		m := Match{
			ATerm: head, AType: headType,
			BTerm: tail, BType: tailType,
			Relation: relation, PMIDs: pmids, Source: source,
		}
		if head != aTerm {
			m.ATerm, m.AType, m.BTerm, m.BType = tail, tailType, head, headType
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if censorLower != 0 || censorUpper != 0 {
		if years == nil {
			return nil, fmt.Errorf("kgstore: year lookup required to censor relationships")
		}
		var filtered []Match
		for _, m := range matches {
			censored := censorPMIDs(m.PMIDs, censorLower, censorUpper, years)
			if len(censored) == 0 {
				continue
			}
			m.PMIDs = censored
			filtered = append(filtered, m)
		}
		return filtered, nil
	}

	s.cacheMu.Lock()
	s.cache[key] = matches
	s.cacheMu.Unlock()
	return matches, nil
}

func censorPMIDs(pmids []int64, lower, upper int, years YearLookup) []int64 {
	out := make([]int64, 0, len(pmids))
	for _, pmid := range pmids {
		year, ok := years.Year(pmid)
		if !ok {
			continue
		}
		if lower != 0 && year < lower {
			continue
		}
		if upper != 0 && year > upper {
			continue
		}
		out = append(out, pmid)
	}
	return out
}
