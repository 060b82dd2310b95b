package km

import (
	"context"
	"testing"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/config"
)

func TestRunSKiMProducesCancerRiskTriple(t *testing.T) {
	eng, store := buildFixture(t)

	params := SKiMParams{
		ATerms: []string{"brca1"},
		BTerms: []string{"cancer", "diabetes"},
		CTerms: []string{"risk", "review"},
		TopNAB: 1,
	}
	if err := params.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	result, err := RunSKiM(context.Background(), eng, store, params, nil)
	if err != nil {
		t.Fatalf("RunSKiM: %v", err)
	}
	if len(result.Triples) == 0 {
		t.Fatalf("expected at least one triple, got none")
	}
	for _, tr := range result.Triples {
		if tr.B != "cancer" {
			t.Fatalf("triple B = %q, want %q (strict top-1 AB should exclude diabetes): %+v", tr.B, "cancer", result.Triples)
		}
	}

	var sawRisk bool
	for _, tr := range result.Triples {
		if tr.C == "risk" {
			sawRisk = true
		}
		if tr.AC.B == "" {
			t.Fatalf("triple %+v missing AC relationship", tr)
		}
		if tr.AC.A != "brca1" || tr.AC.B != tr.C {
			t.Fatalf("triple AC = %+v, want A=brca1 B=%q", tr.AC, tr.C)
		}
	}
	if !sawRisk {
		t.Fatalf("expected a brca1-cancer-risk triple among: %+v", result.Triples)
	}
}

func TestSKiMParamsValidateRejectsEmptyATerms(t *testing.T) {
	p := SKiMParams{ATerms: []string{}, BTerms: []string{"b"}, CTerms: []string{"c"}}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for empty a_terms")
	}
}

func TestSKiMParamsValidateRejectsMultipleATerms(t *testing.T) {
	p := SKiMParams{ATerms: []string{"a", "b"}, BTerms: []string{"c"}, CTerms: []string{"d"}, TopNAB: 1}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for more than one A term")
	}
}

func TestSKiMParamsValidateRequiresPositiveTopNAB(t *testing.T) {
	p := SKiMParams{ATerms: []string{"a"}, BTerms: []string{"c"}, CTerms: []string{"d"}}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for top_n_ab <= 0")
	}
}

// TestRunSKiMPaddingGateOnValidBCHitPval checks that an explicit
// ValidBCHitPval below 1.0 survives Validate, and that with it set
// every B term kept in the result has at least one BC relationship at
// or below that p-value (the filter is per B term, so other triples of
// a kept B may have a higher BC p-value).
func TestRunSKiMPaddingGateOnValidBCHitPval(t *testing.T) {
	eng, store := buildFixture(t)

	params := SKiMParams{
		ATerms:         []string{"brca1"},
		BTerms:         []string{"cancer", "diabetes"},
		CTerms:         []string{"risk", "review"},
		TopNAB:         1,
		ValidBCHitPval: 0.5,
	}
	if err := params.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if params.ValidBCHitPval != 0.5 {
		t.Fatalf("Validate must not overwrite an explicit ValidBCHitPval, got %v", params.ValidBCHitPval)
	}

	result, err := RunSKiM(context.Background(), eng, store, params, nil)
	if err != nil {
		t.Fatalf("RunSKiM: %v", err)
	}
	validHit := make(map[string]bool)
	for _, tr := range result.Triples {
		if tr.BC.PValue <= 0.5 {
			validHit[tr.B] = true
		}
	}
	for _, tr := range result.Triples {
		if !validHit[tr.B] {
			t.Fatalf("B term %q kept without any bc_pvalue at or below ValidBCHitPval=0.5: %+v", tr.B, result.Triples)
		}
	}
}
