package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
)

func buildTestIndex(t *testing.T) *diskindex.Index {
	t.Helper()

	data := &posting.Consolidated{
		Tokens: map[string]*posting.Postings{
			"brca1":         {Positions: map[int64][]int32{1: {0}, 2: {3}}},
			"tp53":          {Positions: map[int64][]int32{2: {1}, 3: {0}}},
			"breast":        {Positions: map[int64][]int32{1: {4}, 4: {0}}},
			"cancer":        {Positions: map[int64][]int32{1: {5}, 4: {1}}},
			"breast cancer": {Positions: map[int64][]int32{1: {4}, 4: {0}}},
		},
		Years: map[int64]int{1: 2018, 2: 2019, 3: 2020, 4: 2021},
	}

	path := filepath.Join(t.TempDir(), "index.kmidx")
	if err := diskindex.Write(path, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	idx, err := diskindex.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func mustQuery(t *testing.T, e *Engine, q string) []int64 {
	t.Helper()
	got, err := e.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query(%q): %v", q, err)
	}
	return got
}

func TestQuerySingleTerm(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	got := mustQuery(t, e, "brca1")
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("brca1 = %v, want [1 2]", got)
	}
}

func TestQueryAnd(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	got := mustQuery(t, e, "brca1 & tp53")
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("brca1 & tp53 = %v, want [2]", got)
	}
}

func TestQueryOr(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	got := mustQuery(t, e, "brca1 | tp53")
	if len(got) != 3 {
		t.Fatalf("brca1 | tp53 = %v, want 3 entries", got)
	}
}

// TestQueryMixedOperatorsOrWins pins down the no-precedence, no-parens
// semantics: a term carrying both `&` and `|` is always split on every
// operator and unioned, exactly as if the `&` weren't there at all.
// "brca1 & tp53 | breast" is brca1 ∪ tp53 ∪ breast, not
// (brca1 ∩ tp53) ∪ breast.
func TestQueryMixedOperatorsOrWins(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	got := mustQuery(t, e, "brca1 & tp53 | breast")
	want := map[int64]struct{}{1: {}, 2: {}, 3: {}, 4: {}}
	if len(got) != len(want) {
		t.Fatalf("brca1 & tp53 | breast = %v, want %d entries (union of all three)", got, len(want))
	}
	for _, pmid := range got {
		if _, ok := want[pmid]; !ok {
			t.Fatalf("unexpected pmid %d in %v", pmid, got)
		}
	}
}

func TestQueryPhrase(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	got := mustQuery(t, e, "breast cancer")
	if len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("breast cancer = %v, want [1 4]", got)
	}
}

func TestCensorByYear(t *testing.T) {
	e := NewEngine(buildTestIndex(t))
	pmids := mustQuery(t, e, "brca1 | tp53")
	censored := e.CensorByYear(pmids, 2018, 2019)
	if len(censored) != 2 {
		t.Fatalf("CensorByYear = %v, want 2 entries within [2018,2019]", censored)
	}
}
