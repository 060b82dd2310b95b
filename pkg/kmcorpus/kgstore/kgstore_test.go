package kgstore

import (
	"context"
	"path/filepath"
	"testing"
)

type fakeYears map[int64]int

func (f fakeYears) Year(pmid int64) (int, bool) {
	y, ok := f[pmid]
	return y, ok
}

func open(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kg.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndLookupEitherDirection(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	err := s.AddRelationships(ctx, []Relationship{
		{Head: "BRCA1", HeadType: "gene", Relation: "associated_with", Tail: "breast cancer", TailType: "disease",
			Evidence: []int64{1, 2, 3}, Source: "curated"},
	})
	if err != nil {
		t.Fatalf("AddRelationships: %v", err)
	}

	matches, err := s.Lookup(ctx, "brca1", "breast cancer", 0, 0, nil)
	if err != nil {
		t.Fatalf("Lookup forward: %v", err)
	}
	if len(matches) != 1 || matches[0].Relation != "associated_with" {
		t.Fatalf("forward lookup = %+v, want one associated_with match", matches)
	}

	matches, err = s.Lookup(ctx, "breast cancer", "brca1", 0, 0, nil)
	if err != nil {
		t.Fatalf("Lookup reverse: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("reverse lookup = %+v, want one match", matches)
	}
}

func TestLookupCensorsEvidenceByYear(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.AddRelationships(ctx, []Relationship{
		{Head: "a", Relation: "r", Tail: "b", Evidence: []int64{1, 2, 3}, Source: "curated"},
	}); err != nil {
		t.Fatalf("AddRelationships: %v", err)
	}

	years := fakeYears{1: 1990, 2: 2010, 3: 2020}

	matches, err := s.Lookup(ctx, "a", "b", 2000, 2015, years)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one surviving match, got %d", len(matches))
	}
	if len(matches[0].PMIDs) != 1 || matches[0].PMIDs[0] != 2 {
		t.Fatalf("PMIDs = %v, want [2]", matches[0].PMIDs)
	}
}

func TestLookupCensorAllEvidenceDropsMatch(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.AddRelationships(ctx, []Relationship{
		{Head: "a", Relation: "r", Tail: "b", Evidence: []int64{1}, Source: "curated"},
	}); err != nil {
		t.Fatalf("AddRelationships: %v", err)
	}

	matches, err := s.Lookup(ctx, "a", "b", 2000, 2010, fakeYears{1: 1980})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected censored-away match to be dropped, got %+v", matches)
	}
}

func TestLookupMissingPairReturnsEmpty(t *testing.T) {
	s := open(t)
	matches, err := s.Lookup(context.Background(), "nope", "nothing", 0, 0, nil)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}
