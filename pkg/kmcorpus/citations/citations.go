// Package citations loads PMID citation-count overlays from
// newline-delimited JSON files, producing corpus.Update records that
// Store.UpsertMany can merge into existing documents without touching
// their title/abstract/year fields.
package citations

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
)

type record struct {
	PMID          int64  `json:"pmid"`
	CitationCount *int64 `json:"citation_count"`
}

// LoadFromNDJSON reads one JSON object per line from r, each carrying a
// "pmid" and optional "citation_count". Malformed lines and records
// missing pmid are logged and skipped rather than aborting the whole
// load, since a citation overlay file spans millions of PMIDs and one
// bad line shouldn't discard the rest. A record without citation_count
// yields an update with a count of 0.
func LoadFromNDJSON(r io.Reader, origin string) ([]corpus.Update, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var updates []corpus.Update
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Printf("citations: skipping malformed line %d in %s: %v", lineNo, origin, err)
			continue
		}
		if rec.PMID == 0 {
			log.Printf("citations: skipping line %d in %s: missing pmid", lineNo, origin)
			continue
		}
		count := int64(0)
		if rec.CitationCount != nil {
			count = *rec.CitationCount
		}

		updates = append(updates, corpus.Update{
			PMID:          rec.PMID,
			CitationCount: corpus.Int64Ptr(count),
			Origin:        corpus.StringPtr(origin),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", origin, err)
	}

	return updates, nil
}
