// Package rank selects representative PMIDs to surface as evidence for
// a KM/SKiM relationship. Three independent rankers look at a different
// facet of "best" (most recent, most cited, published in the highest-
// impact venue); Union combines their picks into one evidence list
// without duplicates.
package rank

import "sort"

// Doc is the subset of a corpus document a ranker needs.
type Doc struct {
	PMID          int64
	PubYear       int
	CitationCount int64
	ImpactFactor  float64
}

// ByYear returns up to topN PMIDs, most recently published first. Ties
// are broken by ascending PMID for deterministic output.
func ByYear(docs []Doc, topN int) []int64 {
	sorted := make([]Doc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PubYear != sorted[j].PubYear {
			return sorted[i].PubYear > sorted[j].PubYear
		}
		return sorted[i].PMID < sorted[j].PMID
	})
	return takePMIDs(sorted, topN)
}

// ByCitationCount returns up to topN PMIDs, most-cited first.
func ByCitationCount(docs []Doc, topN int) []int64 {
	sorted := make([]Doc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CitationCount != sorted[j].CitationCount {
			return sorted[i].CitationCount > sorted[j].CitationCount
		}
		return sorted[i].PMID < sorted[j].PMID
	})
	return takePMIDs(sorted, topN)
}

// ByImpactFactor returns up to topN PMIDs, highest journal impact
// factor first.
func ByImpactFactor(docs []Doc, topN int) []int64 {
	sorted := make([]Doc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ImpactFactor != sorted[j].ImpactFactor {
			return sorted[i].ImpactFactor > sorted[j].ImpactFactor
		}
		return sorted[i].PMID < sorted[j].PMID
	})
	return takePMIDs(sorted, topN)
}

func takePMIDs(sorted []Doc, topN int) []int64 {
	if topN > 0 && topN < len(sorted) {
		sorted = sorted[:topN]
	}
	out := make([]int64, len(sorted))
	for i, d := range sorted {
		out[i] = d.PMID
	}
	return out
}

// Union merges several ranked PMID lists into one, preserving the order
// PMIDs are first encountered across the lists and dropping duplicates.
func Union(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range lists {
		for _, pmid := range list {
			if _, ok := seen[pmid]; ok {
				continue
			}
			seen[pmid] = struct{}{}
			out = append(out, pmid)
		}
	}
	return out
}
