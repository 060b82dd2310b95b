// Package corpus defines the document store abstraction that backs the
// PubMed-style abstract collection KM/SKiM searches run against.
package corpus

import "context"

// Document is a single PMID-keyed corpus record.
type Document struct {
	PMID          int64
	PubYear       int
	Title         string
	Abstract      string
	Body          string
	CitationCount int64
	ImpactFactor  float64
}

// Update describes a partial write to a document. PMID is always
// required; every other field is a pointer so a nil value leaves the
// existing stored value untouched instead of overwriting it with a
// zero value. Origin, when non-nil, is appended to the document's
// origin set rather than replacing it — a PMID ingested from two
// different sources (e.g. a bulk XML dump and a later single-article
// fetch) keeps both origins on record.
type Update struct {
	PMID          int64
	PubYear       *int
	Title         *string
	Abstract      *string
	Body          *string
	CitationCount *int64
	ImpactFactor  *float64
	Origin        *string
}

// IntPtr, StringPtr, Int64Ptr and Float64Ptr are small helpers for
// building an Update literal without a local variable per field.
func IntPtr(v int) *int              { return &v }
func StringPtr(v string) *string     { return &v }
func Int64Ptr(v int64) *int64        { return &v }
func Float64Ptr(v float64) *float64  { return &v }

// Store is the document persistence interface. Implementations must
// make Upsert idempotent and safe under concurrent ingestion.
type Store interface {
	Close() error

	// Upsert writes a single document update, merging with any existing
	// row for the same PMID per Update's partial-write semantics, and
	// marks the PMID dirty for the next index build.
	Upsert(ctx context.Context, u Update) error

	// UpsertMany applies a batch of updates, atomically where the
	// backend supports it.
	UpsertMany(ctx context.Context, us []Update) error

	// Get fetches a single document. ok is false if the PMID is absent.
	Get(ctx context.Context, pmid int64) (Document, bool, error)

	// GetMany fetches documents for the given PMIDs; missing PMIDs are
	// silently omitted from the result.
	GetMany(ctx context.Context, pmids []int64) ([]Document, error)

	// Delete removes documents by PMID. Deleting an absent PMID is not
	// an error.
	Delete(ctx context.Context, pmids []int64) error

	// Origins returns the distinct origin tags recorded for a PMID.
	Origins(ctx context.Context, pmid int64) ([]string, error)

	// AllOrigins returns every distinct origin tag ever recorded across
	// the whole corpus, deterministically sorted.
	AllOrigins(ctx context.Context) ([]string, error)

	// DeleteAll drops every document in the store and returns the count
	// of documents removed. It also clears the origin and publication
	// year bookkeeping entirely. Per-PMID deletion remains available via
	// Delete; DeleteAll exists for full-corpus resets (e.g. before a
	// from-scratch re-ingest).
	DeleteAll(ctx context.Context) (int64, error)

	// DirtyPMIDs returns up to limit PMIDs written since the last
	// ClearDirty call (limit <= 0 means unbounded). kmctl reindex
	// rebuilds from every document and uses this only to list the flags
	// it clears afterwards.
	DirtyPMIDs(ctx context.Context, limit int) ([]int64, error)

	// ClearDirty clears the dirty flag for the given PMIDs, normally
	// called once a full index build that covered them has been
	// published.
	ClearDirty(ctx context.Context, pmids []int64) error

	// Count returns the total number of documents in the store.
	Count(ctx context.Context) (int64, error)

	// All streams every document to fn in an unspecified but stable
	// order, stopping at the first error fn returns. Used by the index
	// builder for a full index rebuild.
	All(ctx context.Context, fn func(Document) error) error
}
