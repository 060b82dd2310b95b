// Package diskindex implements the on-disk positional index format and
// its memory-mapped read path. An index generation is built once (from a
// posting.Consolidated) and published atomically via a temp-file-then-
// rename so readers never observe a partially written index.
//
// File layout:
//
//	[data section]          gob-encoded postings, one blob per token,
//	                         in the order the directory lists them
//	[directory]              sorted list of (key, offset, length)
//	[footer]                  generationID [16]byte | directoryOffset uint64 | entryCount uint64 | magic [8]byte
//
// The directory and footer are small enough to always load fully into
// memory at Open time; only the (potentially large) data section is
// accessed through the memory map.
package diskindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
)

// footerSize is the fixed trailer length: a 16-byte generation UUID,
// an 8-byte directory offset, an 8-byte entry count, and the 8-byte
// magic.
const footerSize = 40

var magic = [8]byte{'K', 'M', 'I', 'D', 'X', '0', '0', '1'}

// YearsKey is the reserved directory key holding the PMID→publication
// year map, gob-encoded the same way as any other posting blob so the
// reader doesn't need a second code path.
const YearsKey = "ABSTRACT_PUBLICATION_YEARS"

type dirEntry struct {
	offset uint64
	length uint64
}

// Index is a read-only, memory-mapped view of one published index
// generation. Safe for concurrent use by multiple goroutines.
type Index struct {
	path      string
	file      *os.File
	region    mmap.MMap
	directory map[string]dirEntry
	years     map[int64]int
	ngramMax  int

	// generationID identifies this published index generation, letting a
	// reader holding a stale mmap (opened before a Write republished the
	// file) tell it apart from whatever replaced it.
	generationID uuid.UUID
}

// GenerationID returns the identifier stamped into this index at Write
// time, unique per rebuild.
func (idx *Index) GenerationID() uuid.UUID {
	return idx.generationID
}

// Write serializes data to a new index file at path, publishing it
// atomically: the full content is written to a temp file in the same
// directory, fsynced, then renamed over path. A reader that has path
// already open via Open continues to see the old generation (mmap holds
// the old inode) until it reopens.
func Write(path string, data *posting.Consolidated) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kmcorpus-index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(tmp)

	keys := make([]string, 0, len(data.Tokens)+1)
	for k := range data.Tokens {
		keys = append(keys, k)
	}
	keys = append(keys, YearsKey)
	sort.Strings(keys)

	entries := make(map[string]dirEntry, len(keys))
	var offset uint64

	for _, k := range keys {
		var buf bytes.Buffer
		if k == YearsKey {
			if err := gob.NewEncoder(&buf).Encode(data.Years); err != nil {
				return fmt.Errorf("encode years map: %w", err)
			}
		} else {
			if err := gob.NewEncoder(&buf).Encode(data.Tokens[k]); err != nil {
				return fmt.Errorf("encode postings for %q: %w", k, err)
			}
		}

		n, err := w.Write(buf.Bytes())
		if err != nil {
			return fmt.Errorf("write postings for %q: %w", k, err)
		}
		entries[k] = dirEntry{offset: offset, length: uint64(n)}
		offset += uint64(n)
	}

	dirStart := offset
	for _, k := range keys {
		e := entries[k]
		if err := writeDirEntry(w, k, e); err != nil {
			return fmt.Errorf("write directory entry for %q: %w", k, err)
		}
	}

	generationID := uuid.New()
	footer := make([]byte, footerSize)
	copy(footer[0:16], generationID[:])
	binary.LittleEndian.PutUint64(footer[16:24], dirStart)
	binary.LittleEndian.PutUint64(footer[24:32], uint64(len(keys)))
	copy(footer[32:40], magic[:])
	if _, err := w.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("publish index %s: %w", path, err)
	}
	return nil
}

func writeDirEntry(w *bufio.Writer, key string, e dirEntry) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(key)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.WriteString(key); err != nil {
		return err
	}
	var offLenBuf [16]byte
	binary.LittleEndian.PutUint64(offLenBuf[0:8], e.offset)
	binary.LittleEndian.PutUint64(offLenBuf[8:16], e.length)
	_, err := w.Write(offLenBuf[:])
	return err
}

// Open memory-maps path read-only and parses its directory and years
// map into memory.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap index %s: %w", path, err)
	}

	idx := &Index{path: path, file: f, region: region}
	if err := idx.parseDirectory(); err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}
	if err := idx.loadYears(); err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}
	idx.ngramMax = idx.discoverMaxNgramWidth()

	return idx, nil
}

func (idx *Index) parseDirectory() error {
	b := idx.region
	if len(b) < footerSize {
		return fmt.Errorf("index %s: truncated file", idx.path)
	}
	footer := b[len(b)-footerSize:]
	if !bytes.Equal(footer[32:40], magic[:]) {
		return fmt.Errorf("index %s: bad magic (corrupt or wrong format)", idx.path)
	}
	genID, err := uuid.FromBytes(footer[0:16])
	if err != nil {
		return fmt.Errorf("index %s: invalid generation id: %w", idx.path, err)
	}
	idx.generationID = genID
	dirStart := binary.LittleEndian.Uint64(footer[16:24])
	count := binary.LittleEndian.Uint64(footer[24:32])

	idx.directory = make(map[string]dirEntry, count)
	pos := dirStart
	for i := uint64(0); i < count; i++ {
		if pos+4 > uint64(len(b)) {
			return fmt.Errorf("index %s: truncated directory entry %d", idx.path, i)
		}
		keyLen := binary.LittleEndian.Uint32(b[pos : pos+4])
		pos += 4
		if pos+uint64(keyLen)+16 > uint64(len(b)) {
			return fmt.Errorf("index %s: truncated directory entry %d", idx.path, i)
		}
		key := string(b[pos : pos+uint64(keyLen)])
		pos += uint64(keyLen)
		off := binary.LittleEndian.Uint64(b[pos : pos+8])
		length := binary.LittleEndian.Uint64(b[pos+8 : pos+16])
		pos += 16
		idx.directory[key] = dirEntry{offset: off, length: length}
	}
	return nil
}

func (idx *Index) loadYears() error {
	e, ok := idx.directory[YearsKey]
	if !ok {
		idx.years = map[int64]int{}
		return nil
	}
	var years map[int64]int
	if err := gob.NewDecoder(bytes.NewReader(idx.blobAt(e))).Decode(&years); err != nil {
		return fmt.Errorf("decode years map: %w", err)
	}
	idx.years = years
	return nil
}

func (idx *Index) blobAt(e dirEntry) []byte {
	return idx.region[e.offset : e.offset+e.length]
}

// Close unmaps the index and closes its underlying file.
func (idx *Index) Close() error {
	if err := idx.region.Unmap(); err != nil {
		idx.file.Close()
		return err
	}
	return idx.file.Close()
}

// Has reports whether token has any postings in the index.
func (idx *Index) Has(token string) bool {
	_, ok := idx.directory[token]
	return ok
}

// Postings returns the positions map for token, or nil if the token is
// absent from the index.
func (idx *Index) Postings(token string) (*posting.Postings, error) {
	e, ok := idx.directory[token]
	if !ok {
		return nil, nil
	}
	var p posting.Postings
	if err := gob.NewDecoder(bytes.NewReader(idx.blobAt(e))).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode postings for %q: %w", token, err)
	}
	return &p, nil
}

// Year returns the publication year recorded for pmid, and whether it
// was found.
func (idx *Index) Year(pmid int64) (int, bool) {
	y, ok := idx.years[pmid]
	return y, ok
}

// AllYears returns the full PMID→year map. Callers must not mutate it.
func (idx *Index) AllYears() map[int64]int {
	return idx.years
}

// VocabSize returns the number of distinct tokens the index holds
// (excluding the reserved years key).
func (idx *Index) VocabSize() int {
	n := len(idx.directory)
	if _, ok := idx.directory[YearsKey]; ok {
		n--
	}
	return n
}

// MaxNgramWidth returns the widest n-gram (by space-separated word
// count) discovered in the index's vocabulary, determined once at Open
// time by sampling.
func (idx *Index) MaxNgramWidth() int {
	return idx.ngramMax
}

// discoverMaxNgramWidth samples up to 100 directory keys and returns the
// widest n-gram width observed, mirroring the reference implementation's
// cheap-sampling approach to the same question (scanning every key in a
// multi-million-token vocabulary just to answer "do we have bigrams" is
// wasted work).
func (idx *Index) discoverMaxNgramWidth() int {
	const sampleSize = 100
	max := 1
	n := 0
	for key := range idx.directory {
		if key == YearsKey {
			continue
		}
		width := strings.Count(key, " ") + 1
		if width > max {
			max = width
		}
		n++
		if n >= sampleSize {
			break
		}
	}
	return max
}
