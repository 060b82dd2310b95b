// Package posting builds the in-memory (and temporarily on-disk) postings
// an index generation accumulates from corpus documents before they are
// consolidated and published by package diskindex.
//
// A Builder keeps a "hot" map of token to per-PMID positions in memory.
// Once the hot map grows past a configured entry count it is flushed to
// a "cold" temp file (gob-encoded) and the hot map is reset, bounding
// peak memory for large corpora. Finish merges every cold file plus
// whatever remains hot into one consolidated in-memory structure ready
// for diskindex to serialize into its final on-disk form.
package posting

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/tokenize"
)

// Postings holds, for one token, the set of documents containing it and
// the token's positions within each document's title+abstract stream.
type Postings struct {
	Positions map[int64][]int32
}

func newPostings() *Postings {
	return &Postings{Positions: make(map[int64][]int32)}
}

func (p *Postings) add(pmid int64, pos int32) {
	p.Positions[pmid] = append(p.Positions[pmid], pos)
}

// Consolidated is the fully merged result of a build, ready for
// diskindex to serialize.
type Consolidated struct {
	Tokens map[string]*Postings
	Years  map[int64]int
}

// Builder accumulates postings across AddDocument calls.
type Builder struct {
	hot              map[string]*Postings
	years            map[int64]int
	hotEntries       int
	flushLimit       int
	tmpDir           string
	coldFiles        []string
	docCount         int
	unigramPositions bool
}

// NewBuilder creates a Builder that spills to tmpDir once the hot map
// holds more than flushLimit distinct tokens. flushLimit <= 0 disables
// spilling (everything stays resident until Finish).
func NewBuilder(tmpDir string, flushLimit int) *Builder {
	return &Builder{
		hot:              make(map[string]*Postings),
		years:            make(map[int64]int),
		flushLimit:       flushLimit,
		tmpDir:           tmpDir,
		unigramPositions: true,
	}
}

// SetUnigramPositions controls whether unigram postings retain full
// per-document position lists (needed for phrase verification) or only
// document membership. Defaults to true.
func (b *Builder) SetUnigramPositions(v bool) { b.unigramPositions = v }

// AddDocument tokenizes title+abstract and records unigram and bigram
// positions for pmid. Title tokens occupy positions [0, len(title)); a
// gap of two positions then separates title from abstract so a bigram
// search never spuriously bridges the two fields, matching how the
// reference indexer laid out title/abstract offsets.
func (b *Builder) AddDocument(pmid int64, pubYear int, title, abstract string) error {
	titleTokens := tokenize.Tokenize(title)
	abstractTokens := tokenize.Tokenize(abstract)

	all := make([]string, 0, len(titleTokens)+len(abstractTokens))
	all = append(all, titleTokens...)
	all = append(all, abstractTokens...)

	abstractStart := len(titleTokens) + 2

	for i, tok := range all {
		pos := i
		if i >= len(titleTokens) {
			pos = abstractStart + (i - len(titleTokens))
		}
		if b.unigramPositions {
			b.place(tok, pmid, int32(pos))
		} else if p, ok := b.hot[tok]; !ok || len(p.Positions[pmid]) == 0 {
			b.place(tok, pmid, int32(pos))
		}
	}

	for i := 0; i+1 < len(all); i++ {
		// Skip the synthetic title/abstract boundary bigram.
		if i+1 == len(titleTokens) {
			continue
		}
		bigram := all[i] + " " + all[i+1]
		pos := i
		if i >= len(titleTokens) {
			pos = abstractStart + (i - len(titleTokens))
		}
		b.place(bigram, pmid, int32(pos))
	}

	b.years[pmid] = pubYear
	b.docCount++

	if b.flushLimit > 0 && len(b.hot) > b.flushLimit {
		if err := b.flush(); err != nil {
			return fmt.Errorf("flush hot map at doc %d: %w", pmid, err)
		}
	}
	return nil
}

func (b *Builder) place(token string, pmid int64, pos int32) {
	p, ok := b.hot[token]
	if !ok {
		p = newPostings()
		b.hot[token] = p
	}
	p.add(pmid, pos)
}

// coldChunk is the gob-serializable form of a spilled hot map.
type coldChunk struct {
	Tokens map[string]*Postings
}

func (b *Builder) flush() error {
	if len(b.hot) == 0 {
		return nil
	}

	f, err := os.CreateTemp(b.tmpDir, "kmcorpus-posting-cold-*.gob")
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(coldChunk{Tokens: b.hot}); err != nil {
		return fmt.Errorf("encode cold chunk: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	b.coldFiles = append(b.coldFiles, f.Name())
	b.hot = make(map[string]*Postings)
	return nil
}

// Finish consolidates every cold file plus the remaining hot map into a
// single in-memory structure, reporting build progress through report
// (called with a monotonically increasing value in [0, 1]; callers are
// free to pass a no-op func). Progress values are clamped so a floating point
// remainder never reports slightly under 1.0 as "done".
func (b *Builder) Finish(report func(float64)) (*Consolidated, error) {
	if report == nil {
		report = func(float64) {}
	}

	merged := make(map[string]*Postings)
	mergeToken := func(tok string, p *Postings) {
		dst, ok := merged[tok]
		if !ok {
			merged[tok] = p
			return
		}
		for pmid, positions := range p.Positions {
			dst.Positions[pmid] = append(dst.Positions[pmid], positions...)
		}
	}

	total := len(b.coldFiles) + 1
	for i, path := range b.coldFiles {
		if err := b.mergeColdFile(path, mergeToken); err != nil {
			return nil, fmt.Errorf("merge cold file %s: %w", path, err)
		}
		report(clampProgress(float64(i+1) / float64(total)))
	}

	for tok, p := range b.hot {
		mergeToken(tok, p)
	}
	report(clampProgress(1.0))

	for _, p := range merged {
		for pmid := range p.Positions {
			sort.Slice(p.Positions[pmid], func(i, j int) bool {
				return p.Positions[pmid][i] < p.Positions[pmid][j]
			})
		}
	}

	for _, path := range b.coldFiles {
		_ = os.Remove(path)
	}
	b.coldFiles = nil

	return &Consolidated{Tokens: merged, Years: b.years}, nil
}

func (b *Builder) mergeColdFile(path string, mergeToken func(string, *Postings)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var chunk coldChunk
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&chunk); err != nil {
		return err
	}
	for tok, p := range chunk.Tokens {
		mergeToken(tok, p)
	}
	return nil
}

// clampProgress snaps a fraction within epsilon of 1.0 up to exactly 1.0,
// so UIs polling build progress see a clean finish instead of a value
// like 0.99999999997 produced by chunked floating point accumulation.
func clampProgress(f float64) float64 {
	if f > 0.9999 {
		return 1.0
	}
	if f < 0 {
		return 0
	}
	return f
}
