// Package pubmedxml parses gzip-compressed PubMed MEDLINE XML baseline
// and update files into corpus.Update records ready for Store.UpsertMany.
package pubmedxml

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
)

// unresolvedYear is the sentinel publication year assigned to an
// article whose year could not be resolved by any of the fallbacks.
const unresolvedYear = 99999

var medlineDateYearPattern = regexp.MustCompile(`(?:^|\D)(1\d{3}|20\d{2})(?:\D|$)`)

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID          string        `xml:"PMID"`
	Article       xmlArticle    `xml:"Article"`
	DateCompleted dateCompleted `xml:"DateCompleted"`
}

type dateCompleted struct {
	Year string `xml:"Year"`
}

type xmlArticle struct {
	ArticleTitle articleTitle `xml:"ArticleTitle"`
	Journal      journal      `xml:"Journal"`
	Abstract     abstract     `xml:"Abstract"`
}

// articleTitle captures inner text even when the title contains nested
// markup (italics, subscripts), mirroring itertext() over ArticleTitle.
type articleTitle struct {
	Inner string `xml:",innerxml"`
}

type journal struct {
	JournalIssue journalIssue `xml:"JournalIssue"`
}

type journalIssue struct {
	PubDate pubDate `xml:"PubDate"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	MedlineDate string `xml:"MedlineDate"`
}

type abstract struct {
	AbstractText []abstractText `xml:"AbstractText"`
}

type abstractText struct {
	Inner string `xml:",innerxml"`
}

// Parse reads a gzip-compressed MEDLINE XML file from r and returns one
// corpus.Update per PubmedArticle element, tagged with origin. Articles
// missing a PMID are skipped and logged; a missing publication year
// resolves through the same Year -> DateCompleted/Year ->
// MedlineDate-regex fallback chain as the source parser, finally
// falling back to the unresolvedYear sentinel.
func Parse(r io.Reader, origin string) ([]corpus.Update, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	var set pubmedArticleSet
	if err := xml.NewDecoder(gz).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode pubmed xml: %w", err)
	}

	updates := make([]corpus.Update, 0, len(set.Articles))
	for _, a := range set.Articles {
		pmidStr := strings.TrimSpace(a.MedlineCitation.PMID)
		if pmidStr == "" {
			log.Printf("pubmedxml: skipping article with missing PMID in %s", origin)
			continue
		}
		pmid, err := strconv.ParseInt(pmidStr, 10, 64)
		if err != nil {
			log.Printf("pubmedxml: skipping article with unparseable PMID %q in %s: %v", pmidStr, origin, err)
			continue
		}

		year := resolveYear(a.MedlineCitation)
		title := cleanInnerXML(a.MedlineCitation.Article.ArticleTitle.Inner)
		abstractText := joinAbstract(a.MedlineCitation.Article.Abstract.AbstractText)

		u := corpus.Update{
			PMID:    pmid,
			PubYear: corpus.IntPtr(year),
			Origin:  corpus.StringPtr(origin),
		}
		if title != "" {
			u.Title = corpus.StringPtr(title)
		}
		if abstractText != "" {
			u.Abstract = corpus.StringPtr(abstractText)
		}
		updates = append(updates, u)
	}

	return updates, nil
}

func resolveYear(mc medlineCitation) int {
	if y := mc.Article.Journal.JournalIssue.PubDate.Year; y != "" {
		if n, err := strconv.Atoi(y); err == nil {
			return n
		}
	}
	if y := mc.DateCompleted.Year; y != "" {
		if n, err := strconv.Atoi(y); err == nil {
			return n
		}
	}
	if md := mc.Article.Journal.JournalIssue.PubDate.MedlineDate; md != "" {
		if m := medlineDateYearPattern.FindStringSubmatch(md); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return unresolvedYear
}

func joinAbstract(parts []abstractText) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return cleanInnerXML(parts[0].Inner)
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = cleanInnerXML(p.Inner)
	}
	return strings.Join(texts, " ")
}

var xmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// cleanInnerXML strips nested markup tags from a title/abstract
// fragment captured via innerxml, leaving just the text content.
func cleanInnerXML(s string) string {
	s = xmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(unescapeEntities(s))
}

func unescapeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
	)
	return replacer.Replace(s)
}
