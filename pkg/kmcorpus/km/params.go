// Package km implements the KinderMiner (KM) and Serial-KinderMiner
// (SKiM) search algorithms over a query.Engine-backed corpus: scoring
// candidate A-B (and chained A-B-C) term relationships by statistical
// co-occurrence significance, then surfacing representative evidence
// PMIDs for the relationships that pass a p-value cutoff.
package km

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/config"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/kmerr"
)

// Params configures a single KM run: one or more A terms searched
// against a candidate list of B terms.
type Params struct {
	ID string

	ATerms []string
	BTerms []string

	// Paired restricts the search to index-wise (ATerms[i], BTerms[i])
	// pairs instead of every A×B combination. len(ATerms) must equal
	// len(BTerms) when set.
	Paired bool

	// TopNAB bounds how many B-term results are returned, ranked by
	// prediction score. Zero means "all".
	TopNAB int

	// PValueCutoff drops candidate relationships whose p-value is not
	// strictly below this threshold. Zero disables the cutoff.
	PValueCutoff float64

	CensorYearLower int
	CensorYearUpper int

	// Scoring selects the significance test scorePair uses: "fet" for the
	// exact Fisher test or "chi-square" for the chi-square approximation.
	// Empty defaults to "fet" in Validate.
	Scoring string

	// ReturnPMIDs, when true, attaches representative evidence PMIDs to
	// each surviving relationship via the three top-N rankers below, run
	// independently of one another and unioned.
	ReturnPMIDs bool

	TopNArticlesMostCited           int
	TopNArticlesMostRecent          int
	TopNArticlesHighestImpactFactor int
}

// jobParamsJSON mirrors the wire aliases the original job submission API
// accepted for these fields, so a gateway translating external requests
// into Params can unmarshal either the modern or legacy key names.
type jobParamsJSON struct {
	ATerms []string `json:"a_terms"`
	BTerms []string `json:"b_terms"`
	Paired bool     `json:"paired"`

	TopNAB       *int     `json:"top_n_ab"`
	TopN         *int     `json:"top_n"`
	PValueCutoff *float64 `json:"p_value_cutoff"`

	CensorYearLower *int `json:"censor_year_lower"`
	CensorYearUpper *int `json:"censor_year_upper"`
	CensorYear      *int `json:"censor_year"`

	Scoring *string `json:"scoring"`

	ReturnPMIDs                     bool `json:"return_pmids"`
	TopNArticlesMostCited           *int `json:"top_n_articles_most_cited"`
	TopNArticles                    *int `json:"top_n_articles"`
	TopNArticlesMostRecent          *int `json:"top_n_articles_most_recent"`
	TopNArticlesHighestImpactFactor *int `json:"top_n_articles_highest_impact_factor"`
}

// UnmarshalJSON accepts both the current field names and the aliases
// ("top_n" for "top_n_ab", "censor_year" for "censor_year_upper",
// "top_n_articles" for "top_n_articles_most_cited") that older API
// clients still send.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw jobParamsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ATerms = raw.ATerms
	p.BTerms = raw.BTerms
	p.Paired = raw.Paired
	p.ReturnPMIDs = raw.ReturnPMIDs

	if raw.TopNAB != nil {
		p.TopNAB = *raw.TopNAB
	} else if raw.TopN != nil {
		p.TopNAB = *raw.TopN
	}

	if raw.PValueCutoff != nil {
		p.PValueCutoff = *raw.PValueCutoff
	}

	if raw.CensorYearUpper != nil {
		p.CensorYearUpper = *raw.CensorYearUpper
	} else if raw.CensorYear != nil {
		p.CensorYearUpper = *raw.CensorYear
	}
	if raw.CensorYearLower != nil {
		p.CensorYearLower = *raw.CensorYearLower
	}

	if raw.TopNArticlesMostCited != nil {
		p.TopNArticlesMostCited = *raw.TopNArticlesMostCited
	} else if raw.TopNArticles != nil {
		p.TopNArticlesMostCited = *raw.TopNArticles
	}
	if raw.TopNArticlesMostRecent != nil {
		p.TopNArticlesMostRecent = *raw.TopNArticlesMostRecent
	}
	if raw.TopNArticlesHighestImpactFactor != nil {
		p.TopNArticlesHighestImpactFactor = *raw.TopNArticlesHighestImpactFactor
	}

	if raw.Scoring != nil {
		p.Scoring = *raw.Scoring
	}

	return nil
}

// NewID assigns a fresh ULID job identifier to p.ID if it is empty.
func (p *Params) NewID() {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
}

// Validate checks the parameters against the job bounds in cfg,
// returning a kmerr.ValidationError describing the first problem found.
func (p *Params) Validate(cfg config.JobsConfig) error {
	if len(p.ATerms) == 0 {
		return kmerr.Validationf("a_terms", "at least one A term is required")
	}
	if len(p.ATerms) > 100 {
		return kmerr.Validationf("a_terms", "must not exceed 100 terms, got %d", len(p.ATerms))
	}
	if len(p.BTerms) == 0 {
		return kmerr.Validationf("b_terms", "at least one B term is required")
	}
	if p.Paired && len(p.ATerms) != len(p.BTerms) {
		return kmerr.Validationf("paired", "paired mode requires len(a_terms) == len(b_terms), got %d and %d", len(p.ATerms), len(p.BTerms))
	}

	if p.Scoring == "" {
		p.Scoring = "fet"
	}
	if p.Scoring != "fet" && p.Scoring != "chi-square" {
		return kmerr.Validationf("scoring", `must be "fet" or "chi-square", got %q`, p.Scoring)
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

	if p.PValueCutoff < 0 || p.PValueCutoff > 1 {
		return kmerr.Validationf("p_value_cutoff", "must be within [0, 1]")
	}
	if p.TopNAB < 0 {
		return kmerr.Validationf("top_n_ab", "must not be negative")
	}
	if p.TopNArticlesMostCited < 0 {
		return kmerr.Validationf("top_n_articles_most_cited", "must not be negative")
	}
	if p.TopNArticlesMostRecent < 0 {
		return kmerr.Validationf("top_n_articles_most_recent", "must not be negative")
	}
	if p.TopNArticlesHighestImpactFactor < 0 {
		return kmerr.Validationf("top_n_articles_highest_impact_factor", "must not be negative")
	}

	return nil
}

// allTerms returns every distinct term referenced by p, used to
// prewarm/acquire/release the query engine's caches around a run.
func (p *Params) allTerms() []string {
	seen := make(map[string]struct{}, len(p.ATerms)+len(p.BTerms))
	var out []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range p.ATerms {
		add(t)
	}
	for _, t := range p.BTerms {
		add(t)
	}
	return out
}

func (p *Params) String() string {
	return fmt.Sprintf("km.Params{ID:%s, A:%d terms, B:%d terms, paired:%v}", p.ID, len(p.ATerms), len(p.BTerms), p.Paired)
}
