package dict

import (
	"encoding/binary"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TimestampEntry pairs the raw textual or numeric token observed at
// ingest time with the millisecond epoch it resolved to.
type TimestampEntry struct {
	Raw         string
	EpochMillis int64
}

// TimestampDictionary interns encoded timestamp tokens. Unlike the other
// three dictionaries it carries a parsed numeric component per entry, so
// it gets its own (otherwise identical) append-only table.
type TimestampDictionary struct {
	table *orderedmap.OrderedMap[string, uint32]
	byID  []TimestampEntry
}

// NewTimestamp returns an empty timestamp dictionary.
func NewTimestamp() *TimestampDictionary {
	return &TimestampDictionary{table: orderedmap.New[string, uint32]()}
}

// Intern returns the existing id for raw, or assigns the next dense id.
func (d *TimestampDictionary) Intern(raw string, epochMillis int64) uint32 {
	if id, ok := d.table.Get(raw); ok {
		return id
	}
	id := uint32(len(d.byID))
	d.table.Set(raw, id)
	d.byID = append(d.byID, TimestampEntry{Raw: raw, EpochMillis: epochMillis})
	return id
}

// Lookup returns the entry for id.
func (d *TimestampDictionary) Lookup(id uint32) (TimestampEntry, bool) {
	if int(id) >= len(d.byID) {
		return TimestampEntry{}, false
	}
	return d.byID[id], true
}

// Len returns the number of distinct entries interned so far.
func (d *TimestampDictionary) Len() int { return len(d.byID) }

// Size returns the uncompressed byte size Store would write.
func (d *TimestampDictionary) Size() int64 {
	var c countingWriter
	_ = d.Store(&c)
	return c.n
}

// Store writes: entry_count, then for each entry: epoch_millis,
// raw_length, raw_bytes.
func (d *TimestampDictionary) Store(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(d.byID))); err != nil {
		return fmt.Errorf("write entry_count: %w", err)
	}
	for _, e := range d.byID {
		if err := binary.Write(w, binary.LittleEndian, e.EpochMillis); err != nil {
			return fmt.Errorf("write epoch_millis: %w", err)
		}
		b := []byte(e.Raw)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return fmt.Errorf("write raw_length: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write raw_bytes: %w", err)
		}
	}
	return nil
}

// LoadTimestamp reconstructs a timestamp dictionary from the format
// written by Store.
func LoadTimestamp(r io.Reader) (*TimestampDictionary, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read entry_count: %w", err)
	}
	d := NewTimestamp()
	for i := uint32(0); i < count; i++ {
		var epoch int64
		if err := binary.Read(r, binary.LittleEndian, &epoch); err != nil {
			return nil, fmt.Errorf("read epoch_millis: %w", err)
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read raw_length: %w", err)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read raw_bytes: %w", err)
		}
		d.Intern(string(b), epoch)
	}
	return d, nil
}
