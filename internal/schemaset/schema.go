// Package schemaset interns per-record field-id sets ("schemas") into
// dense schema ids, and is the sole authority for translating a
// persisted schema_id back to its field set.
package schemaset

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"
)

// Schema is an unordered set of schema-tree node ids — precisely the set
// of nodes touched when walking a single record, including interior
// Object nodes for empty subtrees. Backed by a roaring bitmap: the node
// ids it holds are always small, dense, non-negative integers, exactly
// what roaring is built to index.
type Schema struct {
	bm *roaring.Bitmap
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{bm: roaring.New()}
}

// Add records that nodeID was touched by this record's walk.
func (s *Schema) Add(nodeID int) {
	s.bm.Add(uint32(nodeID))
}

// Contains reports whether nodeID is part of this schema.
func (s *Schema) Contains(nodeID int) bool {
	return s.bm.Contains(uint32(nodeID))
}

// NodeIDs returns the touched node ids in ascending order.
func (s *Schema) NodeIDs() []int {
	ids := make([]int, 0, s.bm.GetCardinality())
	it := s.bm.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// Len returns the number of distinct node ids in the schema.
func (s *Schema) Len() int {
	return int(s.bm.GetCardinality())
}

// Equal reports set equality, independent of insertion order.
func (s *Schema) Equal(other *Schema) bool {
	return s.bm.Equals(other.bm)
}

// key returns a canonical byte-string encoding suitable for use as a map
// key: two Schemas with the same set of node ids always produce the same
// key regardless of the order Add was called in.
func (s *Schema) key() string {
	var buf bytes.Buffer
	// WriteTo serializes the bitmap's own canonical run/array/bitmap
	// container layout, which depends only on the set of values, not the
	// order they were added in.
	_, _ = s.bm.WriteTo(&buf)
	return buf.String()
}

// SchemaFromIDs builds a Schema directly from a slice of node ids, as
// used when reloading a persisted schema-set map.
func SchemaFromIDs(ids []int) *Schema {
	s := NewSchema()
	for _, id := range ids {
		s.Add(id)
	}
	return s
}
