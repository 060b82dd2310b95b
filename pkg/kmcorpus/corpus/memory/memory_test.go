package memory

import (
	"context"
	"testing"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
)

func TestUpsertPartialUpdateMerge(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Upsert(ctx, corpus.Update{
		PMID:     1,
		PubYear:  corpus.IntPtr(2020),
		Title:    corpus.StringPtr("Initial title"),
		Abstract: corpus.StringPtr("Initial abstract"),
		Origin:   corpus.StringPtr("bulk-xml"),
	}); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	// Second update only touches citation_count; title/abstract/year
	// must survive unchanged.
	if err := s.Upsert(ctx, corpus.Update{
		PMID:          1,
		CitationCount: corpus.Int64Ptr(42),
		Origin:        corpus.StringPtr("citation-feed"),
	}); err != nil {
		t.Fatalf("partial upsert: %v", err)
	}

	doc, ok, err := s.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if doc.Title != "Initial title" || doc.Abstract != "Initial abstract" || doc.PubYear != 2020 {
		t.Fatalf("partial update clobbered unrelated fields: %+v", doc)
	}
	if doc.CitationCount != 42 {
		t.Fatalf("CitationCount = %d, want 42", doc.CitationCount)
	}

	origins, err := s.Origins(ctx, 1)
	if err != nil {
		t.Fatalf("Origins: %v", err)
	}
	if len(origins) != 2 {
		t.Fatalf("Origins = %v, want 2 entries", origins)
	}
}

func TestDirtyTracking(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.Upsert(ctx, corpus.Update{PMID: 1, Title: corpus.StringPtr("a")})
	_ = s.Upsert(ctx, corpus.Update{PMID: 2, Title: corpus.StringPtr("b")})

	dirty, err := s.DirtyPMIDs(ctx, 0)
	if err != nil {
		t.Fatalf("DirtyPMIDs: %v", err)
	}
	if len(dirty) != 2 {
		t.Fatalf("DirtyPMIDs = %v, want 2 entries", dirty)
	}

	if err := s.ClearDirty(ctx, []int64{1}); err != nil {
		t.Fatalf("ClearDirty: %v", err)
	}
	dirty, _ = s.DirtyPMIDs(ctx, 0)
	if len(dirty) != 1 || dirty[0] != 2 {
		t.Fatalf("DirtyPMIDs after clear = %v, want [2]", dirty)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, corpus.Update{PMID: 1, Title: corpus.StringPtr("a")})

	if err := s.Delete(ctx, []int64{1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 1); ok {
		t.Fatalf("document still present after Delete")
	}
}

func TestAllOriginsIsSortedAcrossTheWholeCorpus(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, corpus.Update{PMID: 1, Title: corpus.StringPtr("a"), Origin: corpus.StringPtr("citation-feed")})
	_ = s.Upsert(ctx, corpus.Update{PMID: 2, Title: corpus.StringPtr("b"), Origin: corpus.StringPtr("bulk-xml")})
	_ = s.Upsert(ctx, corpus.Update{PMID: 3, Title: corpus.StringPtr("c"), Origin: corpus.StringPtr("bulk-xml")})

	origins, err := s.AllOrigins(ctx)
	if err != nil {
		t.Fatalf("AllOrigins: %v", err)
	}
	want := []string{"bulk-xml", "citation-feed"}
	if len(origins) != len(want) {
		t.Fatalf("AllOrigins = %v, want %v", origins, want)
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Fatalf("AllOrigins = %v, want %v", origins, want)
		}
	}
}

func TestDeleteAllDropsEveryRecord(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, corpus.Update{PMID: 1, Title: corpus.StringPtr("a"), Origin: corpus.StringPtr("bulk-xml")})
	_ = s.Upsert(ctx, corpus.Update{PMID: 2, Title: corpus.StringPtr("b"), Origin: corpus.StringPtr("bulk-xml")})

	n, err := s.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("DeleteAll returned %d, want 2", n)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("Count after DeleteAll = %d, err=%v, want 0", count, err)
	}
	origins, err := s.AllOrigins(ctx)
	if err != nil || len(origins) != 0 {
		t.Fatalf("AllOrigins after DeleteAll = %v, err=%v, want empty", origins, err)
	}
	dirty, err := s.DirtyPMIDs(ctx, 0)
	if err != nil || len(dirty) != 0 {
		t.Fatalf("DirtyPMIDs after DeleteAll = %v, err=%v, want empty", dirty, err)
	}
}
