package column

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// varStringColumn stores, per row, a variable-dictionary id for a
// whitespace-free string leaf.
type varStringColumn struct {
	nodeID int
	tree   *schematree.Tree
	varD   *dict.Dictionary
	ids    []uint32
}

func newVarStringColumn(nodeID int, tree *schematree.Tree, varD *dict.Dictionary) *varStringColumn {
	return &varStringColumn{nodeID: nodeID, tree: tree, varD: varD}
}

func (c *varStringColumn) Append(v value.Value) (int, error) {
	if v.Kind != value.Str {
		return 0, fmt.Errorf("varstring column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	id := c.varD.Intern(v.Str)
	c.ids = append(c.ids, id)
	c.tree.MarkValue(c.nodeID, int64(id), v.Str)
	return 4, nil
}

func (c *varStringColumn) Store(w io.Writer) error {
	for _, id := range c.ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("%w: varstring column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
	}
	return nil
}

func (c *varStringColumn) NodeID() int { return c.nodeID }
func (c *varStringColumn) Kind() schematree.NodeType { return schematree.VarString }
func (c *varStringColumn) Rows() int { return len(c.ids) }

// stableHash gives leaf types without a natural int64 representation (e.g.
// clp-string) a stable cardinality key for mark_value, derived from the raw
// string rather than a dictionary id.
func stableHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
