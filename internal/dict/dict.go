// Package dict implements the four append-only token dictionaries shared
// by the column writers: var, log_type, array, and timestamp. Each
// assigns dense integer ids on first insertion and supports compressed
// persistence in the "entry_count; length-prefixed entries" layout from
// spec §6.
package dict

import (
	"encoding/binary"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dictionary is a generic append-only string interning table. The var,
// log_type, and array dictionaries are all plain Dictionaries; timestamp
// has its own type (TimestampDictionary) because it carries a parsed
// numeric component alongside the raw token.
type Dictionary struct {
	table *orderedmap.OrderedMap[string, uint32]
	byID  []string
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{table: orderedmap.New[string, uint32]()}
}

// Intern returns the existing id for token, or assigns the next dense id
// (== current length) and stores it.
func (d *Dictionary) Intern(token string) uint32 {
	if id, ok := d.table.Get(token); ok {
		return id
	}
	id := uint32(len(d.byID))
	d.table.Set(token, id)
	d.byID = append(d.byID, token)
	return id
}

// Lookup returns the token for id, for reader-side reconstruction.
func (d *Dictionary) Lookup(id uint32) (string, bool) {
	if int(id) >= len(d.byID) {
		return "", false
	}
	return d.byID[id], true
}

// Len returns the number of distinct entries interned so far.
func (d *Dictionary) Len() int { return len(d.byID) }

// Size returns the uncompressed byte size Store would write, without
// keeping the bytes: each call runs Store into a writer that only counts
// them. Used by ArchiveWriter.GetDataSize to drive split decisions.
func (d *Dictionary) Size() int64 {
	var c countingWriter
	_ = d.Store(&c)
	return c.n
}

// countingWriter discards bytes written to it, counting them.
type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// Store writes: entry_count, then length-prefixed entries (entry id is
// position). w is expected to already be a compressing writer.
func (d *Dictionary) Store(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(d.byID))); err != nil {
		return fmt.Errorf("write entry_count: %w", err)
	}
	for _, tok := range d.byID {
		b := []byte(tok)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return fmt.Errorf("write entry length: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write entry bytes: %w", err)
		}
	}
	return nil
}

// Load reconstructs a dictionary from the format written by Store.
func Load(r io.Reader) (*Dictionary, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read entry_count: %w", err)
	}
	d := New()
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read entry length: %w", err)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read entry bytes: %w", err)
		}
		d.Intern(string(b))
	}
	return d, nil
}
