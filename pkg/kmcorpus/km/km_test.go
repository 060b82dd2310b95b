package km

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/config"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus/memory"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/query"
)

// buildFixture creates a small corpus where "brca1" and "cancer" co-occur
// far more than chance, while "brca1" and "diabetes" essentially never
// co-occur, giving RunKM a clearly significant and a clearly
// insignificant candidate to distinguish.
func buildFixture(t *testing.T) (*query.Engine, corpus.Store) {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	builder := posting.NewBuilder(t.TempDir(), 0)

	addDoc := func(pmid int64, year int, title, abstract string) {
		_ = store.Upsert(ctx, corpus.Update{
			PMID: pmid, PubYear: corpus.IntPtr(year),
			Title: corpus.StringPtr(title), Abstract: corpus.StringPtr(abstract),
			CitationCount: corpus.Int64Ptr(pmid * 10),
			ImpactFactor:  corpus.Float64Ptr(float64(pmid) * 0.1),
		})
		if err := builder.AddDocument(pmid, year, title, abstract); err != nil {
			t.Fatalf("AddDocument(%d): %v", pmid, err)
		}
	}

	// 8 docs mention both brca1 and cancer.
	for i := int64(1); i <= 8; i++ {
		addDoc(i, 2015+int(i), "brca1 study", "cancer risk elevated in carriers")
	}
	// 2 docs mention brca1 alone.
	addDoc(9, 2020, "brca1 cohort", "population genetics overview")
	addDoc(10, 2020, "brca1 variant", "structural biology of the protein")
	// 30 docs mention neither brca1 nor cancer, some mention diabetes.
	for i := int64(11); i <= 40; i++ {
		addDoc(i, 2010, "unrelated topic", "diabetes metabolic pathway review")
	}

	data, err := builder.Finish(nil)
	if err != nil {
		t.Fatalf("Finish: %v", err)
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

	return query.NewEngine(idx), store
}

func TestRunKMRanksSignificantCandidateFirst(t *testing.T) {
	eng, store := buildFixture(t)

	params := Params{
		ATerms:                []string{"brca1"},
		BTerms:                []string{"cancer", "diabetes"},
		ReturnPMIDs:           true,
		TopNArticlesMostCited: 5,
	}
	params.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100})

	result, err := RunKM(context.Background(), eng, store, params, nil)
	if err != nil {
		t.Fatalf("RunKM: %v", err)
	}
	if len(result.Relationships) != 2 {
		t.Fatalf("len(Relationships) = %d, want 2", len(result.Relationships))
	}

	top := result.Relationships[0]
	if top.B != "cancer" {
		t.Fatalf("top relationship B = %q, want %q (got relationships: %+v)", top.B, "cancer", result.Relationships)
	}
	if top.Score <= result.Relationships[1].Score {
		t.Fatalf("cancer score %v should exceed diabetes score %v", top.Score, result.Relationships[1].Score)
	}
	if len(top.PMIDs) == 0 {
		t.Fatalf("expected evidence PMIDs to be attached")
	}
}

func TestRunKMTopNArticlesRankersAreIndependent(t *testing.T) {
	eng, store := buildFixture(t)

	params := Params{
		ATerms:                 []string{"brca1"},
		BTerms:                 []string{"cancer"},
		ReturnPMIDs:            true,
		TopNArticlesMostCited:  0,
		TopNArticlesMostRecent: 3,
	}
	params.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100})

	result, err := RunKM(context.Background(), eng, store, params, nil)
	if err != nil {
		t.Fatalf("RunKM: %v", err)
	}
	if len(result.Relationships) != 1 {
		t.Fatalf("len(Relationships) = %d, want 1", len(result.Relationships))
	}
	if len(result.Relationships[0].PMIDs) == 0 {
		t.Fatalf("expected evidence PMIDs from the most-recent ranker")
	}
}

func TestRunKMPairedMode(t *testing.T) {
	eng, store := buildFixture(t)

	params := Params{
		ATerms: []string{"brca1", "brca1"},
		BTerms: []string{"cancer", "diabetes"},
		Paired: true,
	}

	result, err := RunKM(context.Background(), eng, store, params, nil)
	if err != nil {
		t.Fatalf("RunKM paired: %v", err)
	}
	if len(result.Relationships) != 2 {
		t.Fatalf("len(Relationships) = %d, want 2", len(result.Relationships))
	}
}

func TestParamsValidateRejectsMismatchedPairedLengths(t *testing.T) {
	p := Params{ATerms: []string{"a", "b"}, BTerms: []string{"c"}, Paired: true}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for mismatched paired lengths")
	}
}

func TestParamsValidateRejectsOverLongATerms(t *testing.T) {
	terms := make([]string, 101)
	for i := range terms {
		terms[i] = "a"
	}
	p := Params{ATerms: terms, BTerms: []string{"b"}}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for a_terms exceeding 100")
	}
}

func TestParamsValidateDefaultsScoringToFET(t *testing.T) {
	p := Params{ATerms: []string{"a"}, BTerms: []string{"b"}}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Scoring != "fet" {
		t.Fatalf("Scoring = %q, want default %q", p.Scoring, "fet")
	}
}

func TestParamsValidateRejectsUnknownScoring(t *testing.T) {
	p := Params{ATerms: []string{"a"}, BTerms: []string{"b"}, Scoring: "bogus"}
	if err := p.Validate(config.JobsConfig{MinCensorYear: 1000, MaxCensorYear: 2100}); err == nil {
		t.Fatalf("expected validation error for unknown scoring mode")
	}
}
