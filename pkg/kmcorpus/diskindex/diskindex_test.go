package diskindex

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
)

func buildFixture(t *testing.T) *Index {
	t.Helper()

	data := &posting.Consolidated{
		Tokens: map[string]*posting.Postings{
			"brca1": {Positions: map[int64][]int32{1: {0, 5}, 2: {3}}},
			"breast cancer": {Positions: map[int64][]int32{1: {1, 2}}},
			"cancer":        {Positions: map[int64][]int32{1: {2}, 2: {0}}},
		},
		Years: map[int64]int{1: 2019, 2: 2021},
	}

	path := filepath.Join(t.TempDir(), "index.kmidx")
	if err := Write(path, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestWriteOpenRoundTrip(t *testing.T) {
	idx := buildFixture(t)

	if !idx.Has("brca1") {
		t.Fatalf("Has(brca1) = false, want true")
	}
	if idx.Has("nonexistent-token") {
		t.Fatalf("Has(nonexistent-token) = true, want false")
	}

	p, err := idx.Postings("brca1")
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if len(p.Positions[1]) != 2 {
		t.Fatalf("Positions[1] = %v, want 2 entries", p.Positions[1])
	}

	year, ok := idx.Year(1)
	if !ok || year != 2019 {
		t.Fatalf("Year(1) = %d, %v, want 2019, true", year, ok)
	}
}

func TestVocabSizeExcludesYearsKey(t *testing.T) {
	idx := buildFixture(t)
	if got := idx.VocabSize(); got != 3 {
		t.Fatalf("VocabSize() = %d, want 3", got)
	}
}

func TestMaxNgramWidthDiscovery(t *testing.T) {
	idx := buildFixture(t)
	if got := idx.MaxNgramWidth(); got != 2 {
		t.Fatalf("MaxNgramWidth() = %d, want 2", got)
	}
}

func TestSuccessiveGenerationsGetDistinctIDs(t *testing.T) {
	idxA := buildFixture(t)
	idxB := buildFixture(t)

	if idxA.GenerationID() == uuid.Nil {
		t.Fatalf("GenerationID() returned the nil UUID")
	}
	if idxA.GenerationID() == idxB.GenerationID() {
		t.Fatalf("two independently written generations share a GenerationID: %v", idxA.GenerationID())
	}
}
