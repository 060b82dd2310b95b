package query

import (
	"bytes"
	"encoding/gob"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
)

// gobEncodePostings/gobDecodePostings serialize posting.Postings for the
// optional shared cache tier, which stores raw bytes rather than typed
// Go values.
func gobEncodePostings(p *posting.Postings) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecodePostings(blob []byte) (*posting.Postings, error) {
	var p posting.Postings
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
