package km

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/query"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/rank"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/stats"
)

// exactTestMaxN bounds the document count below which the exact Fisher
// test is used; above it the chi-square approximation is used instead,
// since the exact hypergeometric summation's cost grows with the
// contingency table's row/column totals.
const exactTestMaxN = 5000

// Relationship is a single scored A-B candidate.
type Relationship struct {
	A string
	B string

	DocsA  int64
	DocsB  int64
	DocsAB int64

	PValue    float64
	SortRatio float64
	Score     float64

	PMIDs []int64 // populated only when Params.ReturnPMIDs is set
}

// Result is the outcome of one KM run.
type Result struct {
	ID            string
	Relationships []Relationship
}

// Progress reports fractional completion in [0, 1].
type Progress func(float64)

// RunKM scores every (A, B) candidate pair named by params (or the
// paired index-wise subset, if params.Paired is set) against eng, and
// returns the surviving relationships ranked by prediction score
// descending.
func RunKM(ctx context.Context, eng *query.Engine, store corpus.Store, p Params, progress Progress) (*Result, error) {
	p.NewID()
	if progress == nil {
		progress = func(float64) {}
	}

	terms := p.allTerms()
	eng.Acquire(terms)
	defer eng.Release(terms)
	if err := eng.Prewarm(ctx, terms); err != nil {
		return nil, fmt.Errorf("prewarm query cache: %w", err)
	}

	pairs := buildPairs(p.ATerms, p.BTerms, p.Paired)

	rels := make([]Relationship, 0, len(pairs))
	for i, pair := range pairs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rel, err := scorePair(ctx, eng, pair.a, pair.b, p.CensorYearLower, p.CensorYearUpper, p.Scoring)
		if err != nil {
			return nil, fmt.Errorf("score %q vs %q: %w", pair.a, pair.b, err)
		}
		if p.PValueCutoff > 0 && rel.PValue >= p.PValueCutoff {
			progress(clamp01(float64(i+1) / float64(len(pairs))))
			continue
		}
		rels = append(rels, rel)
		progress(clamp01(float64(i+1) / float64(len(pairs))))
	}

	sort.Slice(rels, func(i, j int) bool { return rels[i].Score > rels[j].Score })
	if p.TopNAB > 0 && len(rels) > p.TopNAB {
		rels = rels[:p.TopNAB]
	}

	if p.ReturnPMIDs {
		if err := attachPMIDs(ctx, eng, store, rels, p.CensorYearLower, p.CensorYearUpper,
			p.TopNArticlesMostCited, p.TopNArticlesMostRecent, p.TopNArticlesHighestImpactFactor); err != nil {
			return nil, fmt.Errorf("attach evidence pmids: %w", err)
		}
	} else {
		for i := range rels {
			rels[i].PMIDs = nil
		}
	}

	return &Result{ID: p.ID, Relationships: rels}, nil
}

type termPair struct{ a, b string }

// buildPairs expands a×b terms cross-product, or zips them index-wise
// when paired is set.
func buildPairs(aTerms, bTerms []string, paired bool) []termPair {
	if paired {
		pairs := make([]termPair, len(aTerms))
		for i := range aTerms {
			pairs[i] = termPair{a: aTerms[i], b: bTerms[i]}
		}
		return pairs
	}

	pairs := make([]termPair, 0, len(aTerms)*len(bTerms))
	for _, a := range aTerms {
		for _, b := range bTerms {
			pairs = append(pairs, termPair{a: a, b: b})
		}
	}
	return pairs
}

func scorePair(ctx context.Context, eng *query.Engine, aTerm, bTerm string, censorLower, censorUpper int, scoring string) (Relationship, error) {
	docsA, err := eng.Query(ctx, aTerm)
	if err != nil {
		return Relationship{}, err
	}
	docsB, err := eng.Query(ctx, bTerm)
	if err != nil {
		return Relationship{}, err
	}

	if censorLower != 0 || censorUpper != 0 {
		docsA = eng.CensorByYear(docsA, censorLower, censorUpper)
		docsB = eng.CensorByYear(docsB, censorLower, censorUpper)
	}

	docsAB, err := eng.Query(ctx, aTerm+" & "+bTerm)
	if err != nil {
		return Relationship{}, err
	}
	if censorLower != 0 || censorUpper != 0 {
		docsAB = eng.CensorByYear(docsAB, censorLower, censorUpper)
	}

	total := corpusSize(eng, censorLower, censorUpper)

	ct := stats.NewContingencyTable(int64(len(docsAB)), int64(len(docsA)), int64(len(docsB)), total)

	var pvalue float64
	switch scoring {
	case "chi-square":
		pvalue = stats.ChiSquare(ct)
	case "fet":
		pvalue = stats.FisherExactGreater(ct)
	default:
		// Unrecognized/empty scoring mode: fall back to the size-based
		// auto-selection rather than guessing.
		if ct.N() <= exactTestMaxN {
			pvalue = stats.FisherExactGreater(ct)
		} else {
			pvalue = stats.ChiSquare(ct)
		}
	}
	ratio := stats.SortRatio(ct)
	score := stats.PredictionScore(pvalue, ratio)

	return Relationship{
		A: aTerm, B: bTerm,
		DocsA: int64(len(docsA)), DocsB: int64(len(docsB)), DocsAB: int64(len(docsAB)),
		PValue: pvalue, SortRatio: ratio, Score: score,
		PMIDs: docsAB,
	}, nil
}

// corpusSize returns the size of the (optionally year-censored) corpus
// universe the contingency table is computed against.
func corpusSize(eng *query.Engine, lower, upper int) int64 {
	if lower == 0 && upper == 0 {
		return int64(eng.TotalDocuments())
	}
	return int64(eng.CensoredDocumentCount(lower, upper))
}

func attachPMIDs(ctx context.Context, eng *query.Engine, store corpus.Store, rels []Relationship, censorLower, censorUpper int,
	topNMostCited, topNMostRecent, topNHighestImpactFactor int) error {
	for i := range rels {
		pmids := rels[i].PMIDs
		if censorLower != 0 || censorUpper != 0 {
			pmids = eng.CensorByYear(pmids, censorLower, censorUpper)
		}

		docs, err := store.GetMany(ctx, pmids)
		if err != nil {
			return err
		}
		rankDocs := make([]rank.Doc, len(docs))
		for j, d := range docs {
			rankDocs[j] = rank.Doc{PMID: d.PMID, PubYear: d.PubYear, CitationCount: d.CitationCount, ImpactFactor: d.ImpactFactor}
		}

		union := rank.Union(
			rank.ByYear(rankDocs, topNMostRecent),
			rank.ByCitationCount(rankDocs, topNMostCited),
			rank.ByImpactFactor(rankDocs, topNHighestImpactFactor),
		)
		rels[i].PMIDs = union
	}
	return nil
}

func clamp01(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
