package pubmedxml

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

func gzipOf(t *testing.T, s string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseResolvesYearFromJournalIssue(t *testing.T) {
	const xmlDoc = `<PubmedArticleSet>
<PubmedArticle>
<MedlineCitation>
<PMID>12345</PMID>
<Article>
<ArticleTitle>BRCA1 and <i>cancer</i> risk</ArticleTitle>
<Journal><JournalIssue><PubDate><Year>2001</Year></PubDate></JournalIssue></Journal>
<Abstract><AbstractText>Elevated risk observed.</AbstractText></Abstract>
</Article>
</MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

	updates, err := Parse(gzipOf(t, xmlDoc), "baseline-2024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("len(updates) = %d, want 1", len(updates))
	}
	u := updates[0]
	if u.PMID != 12345 {
		t.Fatalf("PMID = %d, want 12345", u.PMID)
	}
	if u.PubYear == nil || *u.PubYear != 2001 {
		t.Fatalf("PubYear = %v, want 2001", u.PubYear)
	}
	if u.Title == nil || !strings.Contains(*u.Title, "BRCA1 and cancer risk") {
		t.Fatalf("Title = %v, want nested markup stripped", u.Title)
	}
	if u.Abstract == nil || *u.Abstract != "Elevated risk observed." {
		t.Fatalf("Abstract = %v", u.Abstract)
	}
}

func TestParseFallsBackToMedlineDateRegex(t *testing.T) {
	const xmlDoc = `<PubmedArticleSet>
<PubmedArticle>
<MedlineCitation>
<PMID>999</PMID>
<Article>
<Journal><JournalIssue><PubDate><MedlineDate>1998 Nov-Dec</MedlineDate></PubDate></JournalIssue></Journal>
</Article>
</MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

	updates, err := Parse(gzipOf(t, xmlDoc), "baseline-2024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(updates) != 1 || updates[0].PubYear == nil || *updates[0].PubYear != 1998 {
		t.Fatalf("updates = %+v, want PubYear 1998", updates)
	}
}

func TestParseUsesUnresolvedYearSentinelWhenAllFallbacksFail(t *testing.T) {
	const xmlDoc = `<PubmedArticleSet>
<PubmedArticle>
<MedlineCitation>
<PMID>1</PMID>
<Article></Article>
</MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

	updates, err := Parse(gzipOf(t, xmlDoc), "baseline-2024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(updates) != 1 || updates[0].PubYear == nil || *updates[0].PubYear != unresolvedYear {
		t.Fatalf("updates = %+v, want PubYear %d", updates, unresolvedYear)
	}
}

func TestParseSkipsArticleMissingPMID(t *testing.T) {
	const xmlDoc = `<PubmedArticleSet>
<PubmedArticle>
<MedlineCitation>
<Article><ArticleTitle>No PMID here</ArticleTitle></Article>
</MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

	updates, err := Parse(gzipOf(t, xmlDoc), "baseline-2024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected article with missing PMID to be skipped, got %+v", updates)
	}
}

func TestParseJoinsMultipleAbstractTextSections(t *testing.T) {
	const xmlDoc = `<PubmedArticleSet>
<PubmedArticle>
<MedlineCitation>
<PMID>7</PMID>
<Article>
<Abstract>
<AbstractText Label="BACKGROUND">Background text.</AbstractText>
<AbstractText Label="RESULTS">Results text.</AbstractText>
</Abstract>
</Article>
</MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

	updates, err := Parse(gzipOf(t, xmlDoc), "baseline-2024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("len(updates) = %d, want 1", len(updates))
	}
	want := "Background text. Results text."
	if updates[0].Abstract == nil || *updates[0].Abstract != want {
		t.Fatalf("Abstract = %v, want %q", updates[0].Abstract, want)
	}
}
