// Package column implements one typed writer per schema-tree leaf type.
// Each variant supports append/store/id and, on every append, reports a
// stable numeric representation of the value back to the owning
// schema-tree node (mark_value) — this is what feeds the close-time
// rewrite. New picks the variant by switching on the node type tag; the
// variants are then called through the Writer interface, and each reports
// its tag via Kind.
package column

import (
	"io"

	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// Writer is the capability every column variant implements.
type Writer interface {
	// Append forwards one value to the column, returns the number of
	// bytes added, and marks the owning node's cardinality state.
	Append(v value.Value) (int, error)
	// Store serializes the column's row bodies, in row order, to w. w is
	// expected to already be a compressing writer.
	Store(w io.Writer) error
	// NodeID returns the schema-tree node this column was built for.
	NodeID() int
	// Kind returns the schema-tree leaf type this column stores.
	Kind() schematree.NodeType
	// Rows returns the number of values appended so far.
	Rows() int
}

// New instantiates the column writer variant matching typ. Object and
// NullValue are not leaf types and have no column representation; New
// returns nil for them (callers must skip those nodes per spec §4.5).
func New(nodeID int, typ schematree.NodeType, deps Deps) Writer {
	switch typ {
	case schematree.Integer:
		return newInt64Column(nodeID, deps.Tree)
	case schematree.Float:
		return newFloatColumn(nodeID, deps.Tree)
	case schematree.Boolean:
		return newBoolColumn(nodeID, deps.Tree)
	case schematree.VarString:
		return newVarStringColumn(nodeID, deps.Tree, deps.VarDict)
	case schematree.ClpString:
		return newClpStringColumn(nodeID, deps.Tree, deps.VarDict, deps.LogTypeDict)
	case schematree.Array:
		return newArrayColumn(nodeID, deps.Tree, deps.VarDict, deps.ArrayDict)
	case schematree.DateString:
		return newDateStringColumn(nodeID, deps.Tree, deps.TimestampDict, false)
	case schematree.FloatDateString:
		return newDateStringColumn(nodeID, deps.Tree, deps.TimestampDict, true)
	default:
		return nil
	}
}

// Deps bundles the shared dictionaries and tree a column writer may need.
// Column writers never outlive the ArchiveWriter that constructed them —
// they hold borrows, not owned copies.
type Deps struct {
	Tree          *schematree.Tree
	VarDict       *dict.Dictionary
	LogTypeDict   *dict.Dictionary
	ArrayDict     *dict.Dictionary
	TimestampDict *dict.TimestampDictionary
}
