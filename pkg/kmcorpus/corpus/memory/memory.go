// Package memory is an in-memory corpus.Store used for tests and small
// fixtures, mirroring the on-disk store's partial-update semantics
// without touching a filesystem.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
)

type store struct {
	mu      sync.RWMutex
	docs    map[int64]corpus.Document
	origins map[int64]map[string]struct{}
	dirty   map[int64]struct{}
}

// New creates an empty in-memory corpus store.
func New() corpus.Store {
	return &store{
		docs:    make(map[int64]corpus.Document),
		origins: make(map[int64]map[string]struct{}),
		dirty:   make(map[int64]struct{}),
	}
}

func (s *store) Close() error { return nil }

func (s *store) Upsert(_ context.Context, u corpus.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(u)
	return nil
}

func (s *store) UpsertMany(_ context.Context, us []corpus.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range us {
		s.upsertLocked(u)
	}
	return nil
}

func (s *store) upsertLocked(u corpus.Update) {
	d := s.docs[u.PMID]
	d.PMID = u.PMID
	if u.PubYear != nil {
		d.PubYear = *u.PubYear
	}
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Abstract != nil {
		d.Abstract = *u.Abstract
	}
	if u.Body != nil {
		d.Body = *u.Body
	}
	if u.CitationCount != nil {
		d.CitationCount = *u.CitationCount
	}
	if u.ImpactFactor != nil {
		d.ImpactFactor = *u.ImpactFactor
	}
	s.docs[u.PMID] = d

	if u.Origin != nil && *u.Origin != "" {
		if s.origins[u.PMID] == nil {
			s.origins[u.PMID] = make(map[string]struct{})
		}
		s.origins[u.PMID][*u.Origin] = struct{}{}
	}

	s.dirty[u.PMID] = struct{}{}
}

func (s *store) Get(_ context.Context, pmid int64) (corpus.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[pmid]
	return d, ok, nil
}

func (s *store) GetMany(_ context.Context, pmids []int64) ([]corpus.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []corpus.Document
	for _, p := range pmids {
		if d, ok := s.docs[p]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *store) Delete(_ context.Context, pmids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pmids {
		delete(s.docs, p)
		delete(s.origins, p)
		delete(s.dirty, p)
	}
	return nil
}

func (s *store) Origins(_ context.Context, pmid int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.origins[pmid]
	if len(set) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	return out, nil
}

func (s *store) AllOrigins(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, set := range s.origins {
		for o := range set {
			seen[o] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

// DeleteAll drops every document, origin, and dirty-pmid record, returning
// the number of documents that were present.
func (s *store) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := int64(len(s.docs))
	s.docs = make(map[int64]corpus.Document)
	s.origins = make(map[int64]map[string]struct{})
	s.dirty = make(map[int64]struct{})
	return count, nil
}

func (s *store) DirtyPMIDs(_ context.Context, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.dirty))
	for p := range s.dirty {
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *store) ClearDirty(_ context.Context, pmids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pmids {
		delete(s.dirty, p)
	}
	return nil
}

func (s *store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

func (s *store) All(_ context.Context, fn func(corpus.Document) error) error {
	s.mu.RLock()
	docs := make([]corpus.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	for _, d := range docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
