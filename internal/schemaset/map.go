package schemaset

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// entry pairs a schema with the dense id assigned to it.
type entry struct {
	schema *Schema
	id     int
}

// Map interns Schema values into dense schema_ids. Insertion order is
// preserved via an ordered map so Iterate can walk forward or backward —
// the schema-set map file format (spec §6) writes schemas in the order
// they were interned.
type Map struct {
	byKey  *orderedmap.OrderedMap[string, *entry]
	byID   []*entry
	nextID int
}

// New returns an empty schema-set map.
func New() *Map {
	return &Map{byKey: orderedmap.New[string, *entry]()}
}

// Add returns the existing schema_id for an equal set, or assigns the
// next dense id and stores it. Equality is unordered set equality.
func (m *Map) Add(s *Schema) int {
	k := s.key()
	if e, ok := m.byKey.Get(k); ok {
		return e.id
	}
	e := &entry{schema: s, id: m.nextID}
	m.nextID++
	m.byKey.Set(k, e)
	m.byID = append(m.byID, e)
	return e.id
}

// Lookup returns the Schema registered under schemaID, or nil.
func (m *Map) Lookup(schemaID int) *Schema {
	if schemaID < 0 || schemaID >= len(m.byID) {
		return nil
	}
	return m.byID[schemaID].schema
}

// Len returns the number of distinct schemas interned so far.
func (m *Map) Len() int { return len(m.byID) }

// SchemaIDPair is one (schema, schema_id) entry yielded by Iterate.
type SchemaIDPair struct {
	Schema   *Schema
	SchemaID int
}

// Iterate walks every (schema, schema_id) pair in insertion order.
func (m *Map) Iterate() []SchemaIDPair {
	out := make([]SchemaIDPair, 0, m.byKey.Len())
	for pair := m.byKey.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, SchemaIDPair{Schema: pair.Value.schema, SchemaID: pair.Value.id})
	}
	return out
}

// IterateReverse walks every (schema, schema_id) pair in reverse
// insertion order, exercising the ordered map's Newest()/Prev() walk.
func (m *Map) IterateReverse() []SchemaIDPair {
	out := make([]SchemaIDPair, 0, m.byKey.Len())
	for pair := m.byKey.Newest(); pair != nil; pair = pair.Prev() {
		out = append(out, SchemaIDPair{Schema: pair.Value.schema, SchemaID: pair.Value.id})
	}
	return out
}

// Store serializes the map as: schema_count; for each schema, schema_id,
// count of node ids, then the ids in ascending order.
func (m *Map) Store(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.byID))); err != nil {
		return fmt.Errorf("write schema_count: %w", err)
	}
	for _, e := range m.byID {
		ids := e.schema.NodeIDs()
		sort.Ints(ids)
		if err := binary.Write(w, binary.LittleEndian, uint32(e.id)); err != nil {
			return fmt.Errorf("write schema_id %d: %w", e.id, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
			return fmt.Errorf("write field_count %d: %w", e.id, err)
		}
		for _, id := range ids {
			if err := binary.Write(w, binary.LittleEndian, uint32(id)); err != nil {
				return fmt.Errorf("write field id %d (schema %d): %w", id, e.id, err)
			}
		}
	}
	return nil
}

// Load reconstructs a schema-set map from the format written by Store.
func Load(r io.Reader) (*Map, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read schema_count: %w", err)
	}

	m := New()
	for i := uint32(0); i < count; i++ {
		var schemaID, fieldCount uint32
		if err := binary.Read(r, binary.LittleEndian, &schemaID); err != nil {
			return nil, fmt.Errorf("read schema_id: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &fieldCount); err != nil {
			return nil, fmt.Errorf("read field_count: %w", err)
		}
		ids := make([]int, fieldCount)
		for j := range ids {
			var id uint32
			if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
				return nil, fmt.Errorf("read field id: %w", err)
			}
			ids[j] = int(id)
		}

		s := SchemaFromIDs(ids)
		e := &entry{schema: s, id: int(schemaID)}
		m.byKey.Set(s.key(), e)
		m.byID = append(m.byID, e)
		if int(schemaID)+1 > m.nextID {
			m.nextID = int(schemaID) + 1
		}
	}
	return m, nil
}
