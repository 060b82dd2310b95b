package km

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/config"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/kmerr"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/query"
)

// skimPadding is the number of extra AB-stage candidates carried into
// the BC stage beyond TopNAB, so a strict top-N cut by AB score alone
// can't starve the BC search of candidates that turn out to have no
// usable C relationship.
const skimPadding = 20

// SKiMParams configures a Serial-KinderMiner run: a KM search of A
// against B-candidates, followed by a KM search of each surviving B
// against C-candidates.
type SKiMParams struct {
	ID string `json:"id"`

	ATerms []string `json:"a_terms"`
	BTerms []string `json:"b_terms"`
	CTerms []string `json:"c_terms"`

	Paired bool `json:"paired"`

	TopNAB int `json:"top_n_ab"`
	TopNBC int `json:"top_n_bc"`

	PValueCutoffAB float64 `json:"p_value_cutoff_ab"`
	PValueCutoffBC float64 `json:"p_value_cutoff_bc"`

	CensorYearLower int `json:"censor_year_lower"`
	CensorYearUpper int `json:"censor_year_upper"`

	// ValidBCHitPval gates whether the AB stage's candidate list is
	// padded before carrying it into the BC stage, and which B-terms
	// count as having a usable BC hit when the top_n_ab cut is finally
	// applied. Defaults to 1.0 (padding disabled) when zero.
	ValidBCHitPval float64 `json:"valid_bc_hit_pval"`

	ReturnPMIDs bool `json:"return_pmids"`

	Scoring                          string `json:"scoring"`
	TopNArticlesMostCited            int    `json:"top_n_articles_most_cited"`
	TopNArticlesMostRecent           int    `json:"top_n_articles_most_recent"`
	TopNArticlesHighestImpactFactor int    `json:"top_n_articles_highest_impact_factor"`
}

// Validate checks that the A, B and C term lists are non-empty, the
// scoring mode is "fet" or "chi-square", and the censor years lie within
// cfg's range in order, plus SKiM's own constraint that the driven search
// carries exactly one A term with a positive top_n_ab cut.
func (p *SKiMParams) Validate(cfg config.JobsConfig) error {
	if len(p.ATerms) == 0 {
		return kmerr.Validationf("a_terms", "at least one A term is required")
	}
	if len(p.ATerms) != 1 {
		return kmerr.Validationf("a_terms", "SKiM requires exactly one A term, got %d", len(p.ATerms))
	}
	if len(p.ATerms) > 100 {
		return kmerr.Validationf("a_terms", "must not exceed 100 terms, got %d", len(p.ATerms))
	}
	if len(p.BTerms) == 0 {
		return kmerr.Validationf("b_terms", "at least one B term is required")
	}
	if len(p.CTerms) == 0 {
		return kmerr.Validationf("c_terms", "at least one C term is required")
	}
	if p.Paired && len(p.ATerms) != len(p.BTerms) {
		return kmerr.Validationf("paired", "paired mode requires len(a_terms) == len(b_terms)")
	}
	if p.TopNAB <= 0 {
		return kmerr.Validationf("top_n_ab", "SKiM requires a positive top_n_ab")
	}

	if p.Scoring == "" {
		p.Scoring = "fet"
	}
	if p.Scoring != "fet" && p.Scoring != "chi-square" {
		return kmerr.Validationf("scoring", `must be "fet" or "chi-square", got %q`, p.Scoring)
	}

	if p.ValidBCHitPval == 0 {
		p.ValidBCHitPval = 1.0
	}

	if p.TopNArticlesMostRecent == 0 {
		p.TopNArticlesMostRecent = 10
	}

	lower, upper := cfg.MinCensorYear, cfg.MaxCensorYear
	if p.CensorYearLower == 0 {
		p.CensorYearLower = lower
	}
	if p.CensorYearUpper == 0 {
		p.CensorYearUpper = upper
	}
	if p.CensorYearLower < lower || p.CensorYearLower > upper {
		return kmerr.Validationf("censor_year_lower", "must be within [%d, %d]", lower, upper)
	}
	if p.CensorYearUpper < lower || p.CensorYearUpper > upper {
		return kmerr.Validationf("censor_year_upper", "must be within [%d, %d]", lower, upper)
	}
	if p.CensorYearLower > p.CensorYearUpper {
		return kmerr.Validationf("censor_year_lower", "must not exceed censor_year_upper")
	}
	return nil
}

// Triple is a scored A-B-C chain: AB and BC come from the two KM search
// stages, and AC scores the driving A term directly against the same C
// term, giving a complete picture of the chain's three pairwise
// relationships.
type Triple struct {
	A, B, C string
	AB      Relationship
	BC      Relationship
	AC      Relationship
}

// SKiMResult is the outcome of one SKiM run.
type SKiMResult struct {
	ID      string
	Triples []Triple
}

// RunSKiM runs the AB stage, pads its candidate list (only when
// ValidBCHitPval makes a BC hit a meaningful filter) before running the
// BC stage over the padded candidates, computes the AC relationship for
// every surviving (A, C) pair, and returns the merged triples.
//
// The B terms kept are the first TopNAB entries of the AB-ranked
// candidate list (padding included) that also appear in the set of
// B terms with a BC relationship at or below ValidBCHitPval — not
// simply the unpadded top TopNAB, so a padded-in candidate that turns
// out to have no usable BC hit doesn't crowd out one that does.
func RunSKiM(ctx context.Context, eng *query.Engine, store corpus.Store, p SKiMParams, progress Progress) (*SKiMResult, error) {
	if p.ID == "" {
		tmp := Params{}
		tmp.NewID()
		p.ID = tmp.ID
	}
	if progress == nil {
		progress = func(float64) {}
	}

	abParams := Params{
		ID:              p.ID,
		ATerms:          p.ATerms,
		BTerms:          p.BTerms,
		Paired:          p.Paired,
		PValueCutoff:    p.PValueCutoffAB,
		CensorYearLower: p.CensorYearLower,
		CensorYearUpper: p.CensorYearUpper,
		Scoring:         p.Scoring,
	}
	abResult, err := RunKM(ctx, eng, store, abParams, func(f float64) { progress(clamp01(f * 0.3)) })
	if err != nil {
		return nil, fmt.Errorf("AB stage: %w", err)
	}

	rankedBs := abResult.Relationships // already sorted by score desc

	pad := 0
	if p.ValidBCHitPval < 1.0 {
		pad = skimPadding
	}
	carryCount := len(rankedBs)
	if p.TopNAB > 0 {
		carryCount = p.TopNAB + pad
	}
	if carryCount > len(rankedBs) {
		carryCount = len(rankedBs)
	}
	candidates := rankedBs[:carryCount]

	bCandidates := make([]string, len(candidates))
	for i, ab := range candidates {
		bCandidates[i] = ab.B
	}

	bcParams := Params{
		ID:                              p.ID,
		ATerms:                          bCandidates,
		BTerms:                          p.CTerms,
		PValueCutoff:                    p.PValueCutoffBC,
		CensorYearLower:                 p.CensorYearLower,
		CensorYearUpper:                 p.CensorYearUpper,
		ReturnPMIDs:                     p.ReturnPMIDs,
		Scoring:                         p.Scoring,
		TopNArticlesMostCited:           p.TopNArticlesMostCited,
		TopNArticlesMostRecent:          p.TopNArticlesMostRecent,
		TopNArticlesHighestImpactFactor: p.TopNArticlesHighestImpactFactor,
	}
	bcResult, err := RunKM(ctx, eng, store, bcParams, func(f float64) { progress(clamp01(0.3 + f*0.3)) })
	if err != nil {
		return nil, fmt.Errorf("BC stage: %w", err)
	}

	abByB := make(map[string]Relationship, len(candidates))
	for _, ab := range candidates {
		abByB[ab.B] = ab
	}

	// valid_bs: B terms with at least one BC relationship whose p-value
	// clears ValidBCHitPval.
	validBs := make(map[string]struct{})
	for _, bc := range bcResult.Relationships {
		if bc.PValue <= p.ValidBCHitPval {
			validBs[bc.A] = struct{}{}
		}
	}

	// ranked_bs ∩ valid_bs, in AB-score order, then keep the first
	// TopNAB of that intersection.
	var orderedValidBs []string
	for _, ab := range candidates {
		if _, ok := validBs[ab.B]; ok {
			orderedValidBs = append(orderedValidBs, ab.B)
		}
	}
	keepCount := len(orderedValidBs)
	if p.TopNAB > 0 && p.TopNAB < keepCount {
		keepCount = p.TopNAB
	}
	keepBs := make(map[string]struct{}, keepCount)
	for _, b := range orderedValidBs[:keepCount] {
		keepBs[b] = struct{}{}
	}

	var triples []Triple
	for _, bc := range bcResult.Relationships {
		if _, ok := keepBs[bc.A]; !ok {
			continue
		}
		ab, ok := abByB[bc.A]
		if !ok {
			continue
		}
		triples = append(triples, Triple{
			A: firstOf(p.ATerms), B: bc.A, C: bc.B,
			AB: ab, BC: bc,
		})
	}

	if err := attachACRelationships(ctx, eng, store, p, triples, func(f float64) { progress(clamp01(0.6 + f*0.4)) }); err != nil {
		return nil, fmt.Errorf("AC stage: %w", err)
	}

	sort.Slice(triples, func(i, j int) bool {
		return triples[i].AB.Score+triples[i].BC.Score+triples[i].AC.Score >
			triples[j].AB.Score+triples[j].BC.Score+triples[j].AC.Score
	})
	if p.TopNBC > 0 && len(triples) > p.TopNBC {
		triples = triples[:p.TopNBC]
	}

	return &SKiMResult{ID: p.ID, Triples: triples}, nil
}

// attachACRelationships scores the driving A term directly against
// every distinct C term appearing in triples and merges the result
// back into each triple's AC field, in place.
func attachACRelationships(ctx context.Context, eng *query.Engine, store corpus.Store, p SKiMParams, triples []Triple, progress Progress) error {
	if len(triples) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var cTerms []string
	for _, t := range triples {
		if _, ok := seen[t.C]; ok {
			continue
		}
		seen[t.C] = struct{}{}
		cTerms = append(cTerms, t.C)
	}

	acParams := Params{
		ID:              p.ID,
		ATerms:          p.ATerms,
		BTerms:          cTerms,
		CensorYearLower: p.CensorYearLower,
		CensorYearUpper: p.CensorYearUpper,
		Scoring:         p.Scoring,
	}
	acResult, err := RunKM(ctx, eng, store, acParams, progress)
	if err != nil {
		return err
	}

	acByC := make(map[string]Relationship, len(acResult.Relationships))
	for _, ac := range acResult.Relationships {
		acByC[ac.B] = ac
	}

	for i := range triples {
		if ac, ok := acByC[triples[i].C]; ok {
			triples[i].AC = ac
		}
	}
	return nil
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
