// Package ingestrecord decodes raw JSON documents into the generic any
// tree (map[string]any / []any / string / int64 / float64 / bool / nil)
// that internal/walker consumes, using the same ojg decoder the teacher's
// JsonWalker uses for JSONPath queries.
package ingestrecord

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"

	"github.com/clpstructured/clps/internal/clperr"
)

// Decode parses a single JSON document from r and returns its top-level
// value as a map. A non-object top-level value is rejected as malformed:
// the walker (and the spec it implements) only ever operates on object
// records.
func Decode(r io.Reader) (map[string]any, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read record: %v", clperr.ErrIoFailure, err)
	}
	return DecodeBytes(b)
}

// DecodeBytes parses one JSON document already read into memory.
func DecodeBytes(b []byte) (map[string]any, error) {
	v, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", clperr.ErrMalformedInput, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level record must be a JSON object, got %T", clperr.ErrMalformedInput, v)
	}
	return obj, nil
}

// Scanner streams newline-delimited JSON records from r, skipping (and
// reporting via Err after Scan returns false) any line that fails to
// decode, matching spec.md §7: malformed records are reported and skipped
// by the collaborator, not fatal to the stream.
type Scanner struct {
	sc      *bufio.Scanner
	current map[string]any
	err     error
	skipped int
}

// NewScanner wraps r for line-oriented record decoding. Each line must be
// one complete JSON object.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Scanner{sc: sc}
}

// Scan advances to the next well-formed record, skipping malformed or
// blank lines. It returns false at end of input.
func (s *Scanner) Scan() bool {
	for s.sc.Scan() {
		line := s.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		obj, err := DecodeBytes(line)
		if err != nil {
			s.err = err
			s.skipped++
			continue
		}
		s.current = obj
		return true
	}
	if err := s.sc.Err(); err != nil {
		s.err = fmt.Errorf("%w: %v", clperr.ErrIoFailure, err)
	}
	return false
}

// Record returns the most recently decoded record.
func (s *Scanner) Record() map[string]any { return s.current }

// Err returns the last malformed-record error encountered (if any); it is
// informational only, since Scan already skipped past it. Use Skipped for
// an accurate count of how many lines were dropped.
func (s *Scanner) Err() error { return s.err }

// Skipped returns the number of lines Scan discarded for failing to
// decode, across the whole stream.
func (s *Scanner) Skipped() int { return s.skipped }
