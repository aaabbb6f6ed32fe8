package column

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// int64Column packs signed 64-bit values.
type int64Column struct {
	nodeID int
	tree   *schematree.Tree
	values []int64
}

func newInt64Column(nodeID int, tree *schematree.Tree) *int64Column {
	return &int64Column{nodeID: nodeID, tree: tree}
}

func (c *int64Column) Append(v value.Value) (int, error) {
	if v.Kind != value.I64 {
		return 0, fmt.Errorf("int64 column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	c.values = append(c.values, v.I64)
	c.tree.MarkValue(c.nodeID, v.I64, fmt.Sprintf("%d", v.I64))
	return 8, nil
}

func (c *int64Column) Store(w io.Writer) error {
	for _, v := range c.values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: int64 column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
	}
	return nil
}

func (c *int64Column) NodeID() int { return c.nodeID }
func (c *int64Column) Kind() schematree.NodeType { return schematree.Integer }
func (c *int64Column) Rows() int { return len(c.values) }

// floatColumn packs IEEE-754 doubles.
type floatColumn struct {
	nodeID int
	tree   *schematree.Tree
	values []float64
}

func newFloatColumn(nodeID int, tree *schematree.Tree) *floatColumn {
	return &floatColumn{nodeID: nodeID, tree: tree}
}

func (c *floatColumn) Append(v value.Value) (int, error) {
	if v.Kind != value.F64 {
		return 0, fmt.Errorf("float column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	c.values = append(c.values, v.F64)
	// Bit-cast the double into a stable numeric representation for
	// cardinality tracking, as spec §4.4 prescribes.
	c.tree.MarkValue(c.nodeID, int64(math.Float64bits(v.F64)), fmt.Sprintf("%v", v.F64))
	return 8, nil
}

func (c *floatColumn) Store(w io.Writer) error {
	for _, v := range c.values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: float column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
	}
	return nil
}

func (c *floatColumn) NodeID() int { return c.nodeID }
func (c *floatColumn) Kind() schematree.NodeType { return schematree.Float }
func (c *floatColumn) Rows() int { return len(c.values) }

// boolColumn packs single-byte boolean values.
type boolColumn struct {
	nodeID int
	tree   *schematree.Tree
	values []bool
}

func newBoolColumn(nodeID int, tree *schematree.Tree) *boolColumn {
	return &boolColumn{nodeID: nodeID, tree: tree}
}

func (c *boolColumn) Append(v value.Value) (int, error) {
	if v.Kind != value.Bool {
		return 0, fmt.Errorf("bool column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	c.values = append(c.values, v.Bool)
	numeric := int64(0)
	if v.Bool {
		numeric = 1
	}
	c.tree.MarkValue(c.nodeID, numeric, fmt.Sprintf("%v", v.Bool))
	return 1, nil
}

func (c *boolColumn) Store(w io.Writer) error {
	buf := make([]byte, 1)
	for _, v := range c.values {
		if v {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("%w: bool column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
	}
	return nil
}

func (c *boolColumn) NodeID() int { return c.nodeID }
func (c *boolColumn) Kind() schematree.NodeType { return schematree.Boolean }
func (c *boolColumn) Rows() int { return len(c.values) }
