package rank

import (
	"reflect"
	"testing"
)

func fixture() []Doc {
	return []Doc{
		{PMID: 1, PubYear: 2015, CitationCount: 100, ImpactFactor: 2.0},
		{PMID: 2, PubYear: 2020, CitationCount: 10, ImpactFactor: 9.0},
		{PMID: 3, PubYear: 2018, CitationCount: 500, ImpactFactor: 1.0},
	}
}

func TestByYear(t *testing.T) {
	got := ByYear(fixture(), 2)
	if !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Fatalf("ByYear = %v, want [2 3]", got)
	}
}

func TestByCitationCount(t *testing.T) {
	got := ByCitationCount(fixture(), 2)
	if !reflect.DeepEqual(got, []int64{3, 1}) {
		t.Fatalf("ByCitationCount = %v, want [3 1]", got)
	}
}

func TestByImpactFactor(t *testing.T) {
	got := ByImpactFactor(fixture(), 1)
	if !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("ByImpactFactor = %v, want [2]", got)
	}
}

func TestUnionDedupsPreservingFirstSeenOrder(t *testing.T) {
	got := Union([]int64{2, 3}, []int64{3, 1}, []int64{2})
	if !reflect.DeepEqual(got, []int64{2, 3, 1}) {
		t.Fatalf("Union = %v, want [2 3 1]", got)
	}
}

func TestByYearNoLimitReturnsAll(t *testing.T) {
	got := ByYear(fixture(), 0)
	if len(got) != 3 {
		t.Fatalf("ByYear(0) = %v, want all 3 entries", got)
	}
}
