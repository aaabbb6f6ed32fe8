// Package walker implements the record walker: it consumes one decoded
// JSON-like value (object, array, number, string, boolean, null) and
// produces a ParsedMessage plus the schema (touched node id set) for the
// record, driving schema-tree growth as it goes.
package walker

import (
	"github.com/clpstructured/clps/internal/schemaset"
	"github.com/clpstructured/clps/internal/value"
)

// Entry is one (node_id, typed value) pair in walk order.
type Entry struct {
	NodeID int
	Value  value.Value
}

// ParsedMessage is the ordered list of (node_id, value) pairs produced by
// one record walk, in the order the walker encountered them (object
// fields are visited in Go map iteration order). The SchemaWriter routes
// each entry to its column by node id, so this order need not match the
// schema group's column order.
// SchemaID is left zero until the caller interns Schema via a
// schemaset.Map and fills it in.
type ParsedMessage struct {
	Entries  []Entry
	Schema   *schemaset.Schema
	SchemaID uint32
}
