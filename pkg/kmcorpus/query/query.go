// Package query implements boolean/phrase search over a diskindex.Index:
// term sanitization, &(AND)/|(OR) composition, phrase resolution via
// bigram-accelerated candidate generation followed by positional
// verification, and a small set of cache tiers (per-leaf-term result
// cache, byte-bounded token-posting cache, optional shared cache) to
// keep repeated KM/SKiM runs over the same vocabulary cheap.
//
// Composition has no operator precedence and no parenthesized grouping:
// a term is classified by the operators it contains, with `|` checked
// before `&` regardless of position. If `|` appears anywhere in the sanitized term, the whole term is
// split on every operator and the subterm results are unioned. Else if
// `&` appears, the same split is intersected. A term with neither is a
// single phrase. "a&b|c" is therefore a ∪ b ∪ c, not (a∩b) ∪ c.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/kmerr"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/tokenize"
)

// SharedCache is the optional third cache tier: a process-external,
// byte-addressable cache (normally backed by badger) that several
// Engines on the same host can share so a warm token's postings don't
// have to be decoded from the index N times.
type SharedCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Engine resolves boolean/phrase queries against one index generation.
type Engine struct {
	idx *diskindex.Index

	leafMu    sync.Mutex
	leafCache map[string]map[int64]struct{}

	tokenCache *tokenPostingCache
	shared     SharedCache

	refMu     sync.Mutex
	refCounts map[string]int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithTokenCacheBytes bounds the token-posting cache tier to
// approximately maxBytes of decoded postings. Zero disables that tier's
// budget enforcement (entries accumulate without eviction).
func WithTokenCacheBytes(maxBytes int64) Option {
	return func(e *Engine) { e.tokenCache.maxBytes = maxBytes }
}

// WithSharedCache attaches an optional shared cache tier consulted
// before falling back to the memory-mapped index itself.
func WithSharedCache(c SharedCache) Option {
	return func(e *Engine) { e.shared = c }
}

// NewEngine builds a query Engine over idx.
func NewEngine(idx *diskindex.Index, opts ...Option) *Engine {
	tc, _ := newTokenPostingCache(4096)
	e := &Engine{
		idx:        idx,
		leafCache:  make(map[string]map[int64]struct{}),
		tokenCache: tc,
		refCounts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query evaluates a boolean query string and returns the matching PMIDs
// in ascending order. See the package comment for how `&`/`|` terms are
// classified and split.
func (e *Engine) Query(ctx context.Context, q string) ([]int64, error) {
	clean := tokenize.SanitizeTerm(q)
	if clean == "" {
		return nil, kmerr.Validationf("query", "empty query")
	}

	set, err := e.resolveComposite(ctx, clean)
	if err != nil {
		return nil, err
	}
	return sortedPMIDs(set), nil
}

// resolveComposite dispatches an already-sanitized term to the union,
// intersection, or single-leaf path per the `|`-then-`&` operator
// precedence rule.
func (e *Engine) resolveComposite(ctx context.Context, clean string) (map[int64]struct{}, error) {
	switch {
	case strings.ContainsRune(clean, '|'):
		return e.combineSubterms(ctx, clean, union)
	case strings.ContainsRune(clean, '&'):
		return e.combineSubterms(ctx, clean, intersect)
	default:
		return e.resolveLeaf(ctx, clean)
	}
}

// combineSubterms splits clean on every operator and folds each
// subterm's resolved set together with combine (union or intersect).
func (e *Engine) combineSubterms(ctx context.Context, clean string, combine func(a, b map[int64]struct{}) map[int64]struct{}) (map[int64]struct{}, error) {
	subs := tokenize.GetSubterms(clean)
	if len(subs) == 0 {
		return nil, kmerr.Validationf("query", "query %q has no subterms after splitting on operators", clean)
	}

	var out map[int64]struct{}
	for _, sub := range subs {
		set, err := e.resolveLeaf(ctx, sub)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = set
			continue
		}
		out = combine(out, set)
	}
	return out, nil
}

// subtermsOf returns the atomic (operator-free) leaves a sanitized term
// resolves to, the same split Query applies, used by Acquire/Release/
// Prewarm so their leaf-cache bookkeeping lines up with what Query
// actually caches.
func subtermsOf(clean string) []string {
	if strings.ContainsRune(clean, '|') || strings.ContainsRune(clean, '&') {
		return tokenize.GetSubterms(clean)
	}
	return []string{clean}
}

// CensorByYear filters pmids to those whose publication year falls in
// [lower, upper] inclusive. A PMID with no recorded year is excluded.
func (e *Engine) CensorByYear(pmids []int64, lower, upper int) []int64 {
	out := make([]int64, 0, len(pmids))
	for _, pmid := range pmids {
		year, ok := e.idx.Year(pmid)
		if !ok {
			continue
		}
		if year >= lower && year <= upper {
			out = append(out, pmid)
		}
	}
	return out
}

// Acquire marks terms as in-use by a caller (normally one KM/SKiM job),
// incrementing a per-sanitized-term reference count. Pair with Release
// once the caller is done so a long-lived Engine shared across many jobs
// doesn't retain every term's leaf cache entry forever, while terms
// still in use by another concurrently running job are not evicted out
// from under it.
func (e *Engine) Acquire(terms []string) {
	e.refMu.Lock()
	defer e.refMu.Unlock()
	for _, t := range terms {
		clean := tokenize.SanitizeTerm(t)
		if clean == "" {
			continue
		}
		for _, sub := range subtermsOf(clean) {
			e.refCounts[sub]++
		}
	}
}

// Release decrements the reference count Acquire incremented, evicting
// a term's leaf cache entry once its count reaches zero.
func (e *Engine) Release(terms []string) {
	e.refMu.Lock()
	defer e.refMu.Unlock()
	for _, t := range terms {
		clean := tokenize.SanitizeTerm(t)
		if clean == "" {
			continue
		}
		for _, sub := range subtermsOf(clean) {
			if e.refCounts[sub] <= 1 {
				delete(e.refCounts, sub)
				e.leafMu.Lock()
				delete(e.leafCache, sub)
				e.leafMu.Unlock()
				continue
			}
			e.refCounts[sub]--
		}
	}
}

// Prewarm resolves every term up front (populating the leaf cache)
// before a job issues its full cross-product of queries, so the first
// query of a large KM/SKiM run isn't any slower than the rest.
func (e *Engine) Prewarm(ctx context.Context, terms []string) error {
	for _, t := range terms {
		clean := tokenize.SanitizeTerm(t)
		if clean == "" {
			continue
		}
		for _, sub := range subtermsOf(clean) {
			if _, err := e.resolveLeaf(ctx, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// TotalDocuments returns the number of documents the index carries a
// publication year for.
func (e *Engine) TotalDocuments() int {
	return len(e.idx.AllYears())
}

// CensoredDocumentCount returns the number of indexed documents whose
// publication year falls within [lower, upper] inclusive.
func (e *Engine) CensoredDocumentCount(lower, upper int) int {
	n := 0
	for _, year := range e.idx.AllYears() {
		if year >= lower && year <= upper {
			n++
		}
	}
	return n
}

func union(a, b map[int64]struct{}) map[int64]struct{} {
	out := make(map[int64]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func intersect(a, b map[int64]struct{}) map[int64]struct{} {
	if len(a) > len(b) {
		a, b = b, a
	}
	out := make(map[int64]struct{}, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func sortedPMIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// --- leaf resolution ---

// resolveLeaf resolves one operator-free term (a single word or
// phrase, already sanitized and split off from any composite query by
// Query/combineSubterms) to its matching PMID set, consulting and
// populating the leaf cache.
func (e *Engine) resolveLeaf(ctx context.Context, term string) (map[int64]struct{}, error) {
	clean := strings.TrimSpace(term)
	if clean == "" {
		return nil, kmerr.Validationf("term", "term %q sanitizes to empty string", term)
	}

	e.leafMu.Lock()
	if cached, ok := e.leafCache[clean]; ok {
		e.leafMu.Unlock()
		return cached, nil
	}
	e.leafMu.Unlock()

	words := tokenize.Tokenize(clean)
	var (
		set map[int64]struct{}
		err error
	)
	switch len(words) {
	case 0:
		return nil, kmerr.Validationf("term", "term %q sanitizes to empty string", term)
	case 1:
		set, err = e.unigramDocs(words[0])
	default:
		set, err = e.phraseDocs(words)
	}
	if err != nil {
		return nil, err
	}

	e.leafMu.Lock()
	e.leafCache[clean] = set
	e.leafMu.Unlock()
	return set, nil
}

func (e *Engine) unigramDocs(token string) (map[int64]struct{}, error) {
	p, err := e.postingsFor(token)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return map[int64]struct{}{}, nil
	}
	set := make(map[int64]struct{}, len(p.Positions))
	for pmid := range p.Positions {
		set[pmid] = struct{}{}
	}
	return set, nil
}

// phraseDocs resolves a multi-word term. When the index carries
// bigrams it narrows candidates via adjacent-pair postings before
// verifying the full word chain positionally; otherwise it falls back
// to intersecting unigram document sets and verifying positions
// directly.
func (e *Engine) phraseDocs(subs []string) (map[int64]struct{}, error) {
	var candidates map[int64]struct{}

	if e.idx.MaxNgramWidth() >= 2 {
		for i := 0; i+1 < len(subs); i++ {
			bigram := subs[i] + " " + subs[i+1]
			p, err := e.postingsFor(bigram)
			if err != nil {
				return nil, err
			}
			docSet := map[int64]struct{}{}
			if p != nil {
				for pmid := range p.Positions {
					docSet[pmid] = struct{}{}
				}
			}
			if candidates == nil {
				candidates = docSet
			} else {
				candidates = intersect(candidates, docSet)
			}
			if len(candidates) == 0 {
				return candidates, nil
			}
		}
	} else {
		for i, w := range subs {
			docSet, err := e.unigramDocs(w)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				candidates = docSet
			} else {
				candidates = intersect(candidates, docSet)
			}
			if len(candidates) == 0 {
				return candidates, nil
			}
		}
	}

	// Positional verification: confirm each candidate actually contains
	// the words in subs as a contiguous run, not just co-occurring.
	verified := make(map[int64]struct{}, len(candidates))
	for pmid := range candidates {
		ok, err := e.verifyPhraseAt(pmid, subs)
		if err != nil {
			return nil, err
		}
		if ok {
			verified[pmid] = struct{}{}
		}
	}
	return verified, nil
}

func (e *Engine) verifyPhraseAt(pmid int64, subs []string) (bool, error) {
	positions := make([][]int32, len(subs))
	for i, w := range subs {
		p, err := e.postingsFor(w)
		if err != nil {
			return false, err
		}
		if p == nil {
			return false, nil
		}
		pos, ok := p.Positions[pmid]
		if !ok {
			return false, nil
		}
		positions[i] = pos
	}

	firstWordPositions := positions[0]
	for _, start := range firstWordPositions {
		match := true
		for i := 1; i < len(subs); i++ {
			if !contains(positions[i], start+int32(i)) {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func contains(positions []int32, target int32) bool {
	for _, p := range positions {
		if p == target {
			return true
		}
	}
	return false
}

func (e *Engine) postingsFor(token string) (*posting.Postings, error) {
	if p, ok := e.tokenCache.get(token); ok {
		return p, nil
	}

	if e.shared != nil {
		if blob, ok := e.shared.Get(token); ok {
			p, err := decodePostings(blob)
			if err == nil {
				e.tokenCache.put(token, p)
				return p, nil
			}
		}
	}

	p, err := e.idx.Postings(token)
	if err != nil {
		return nil, fmt.Errorf("load postings for %q: %w", token, err)
	}
	if p != nil {
		e.tokenCache.put(token, p)
		if e.shared != nil {
			if blob, err := encodePostings(p); err == nil {
				e.shared.Set(token, blob)
			}
		}
	}
	return p, nil
}

// tokenPostingCache is a byte-budgeted wrapper around an LRU cache of
// decoded token postings, so a handful of very high-frequency tokens
// (e.g. common disease names) can't alone blow past the memory budget
// even though the underlying LRU is sized by entry count.
type tokenPostingCache struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *posting.Postings]
	sizes    map[string]int64
	curBytes int64
	maxBytes int64
}

func newTokenPostingCache(maxEntries int) (*tokenPostingCache, error) {
	c, err := lru.New[string, *posting.Postings](maxEntries)
	if err != nil {
		return nil, err
	}
	return &tokenPostingCache{cache: c, sizes: make(map[string]int64)}, nil
}

func (c *tokenPostingCache) get(token string) (*posting.Postings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(token)
}

func (c *tokenPostingCache) put(token string, p *posting.Postings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := estimateSize(p)
	c.cache.Add(token, p)
	c.sizes[token] = size
	c.curBytes += size

	if c.maxBytes <= 0 {
		return
	}
	for c.curBytes > c.maxBytes {
		evictedKey, _, ok := c.cache.RemoveOldest()
		if !ok {
			break
		}
		c.curBytes -= c.sizes[evictedKey]
		delete(c.sizes, evictedKey)
	}
}

func estimateSize(p *posting.Postings) int64 {
	var n int64
	for _, positions := range p.Positions {
		n += int64(8 + 4*len(positions)) // pmid key + int32 positions
	}
	return n
}

func decodePostings(blob []byte) (*posting.Postings, error) {
	return gobDecodePostings(blob)
}

func encodePostings(p *posting.Postings) ([]byte, error) {
	return gobEncodePostings(p)
}
