package column

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// dateStringColumn encodes timestamp leaves into the timestamp
// dictionary and stores the encoded id per row. isFloat distinguishes
// DateString (an integer epoch or a parsed date string) from
// FloatDateString (fractional epoch source) — both share a backing
// dictionary and on-disk layout;
// only the reported NodeType differs.
type dateStringColumn struct {
	nodeID  int
	isFloat bool
	tree    *schematree.Tree
	tsD     *dict.TimestampDictionary
	ids     []uint32
}

func newDateStringColumn(nodeID int, tree *schematree.Tree, tsD *dict.TimestampDictionary, isFloat bool) *dateStringColumn {
	return &dateStringColumn{nodeID: nodeID, isFloat: isFloat, tree: tree, tsD: tsD}
}

// Append accepts either an I64 (epoch millis, DateString) or F64 (epoch
// seconds with fraction, FloatDateString) value plus its raw textual
// form, which the caller packs into Value.Str.
func (c *dateStringColumn) Append(v value.Value) (int, error) {
	var epochMillis int64
	switch v.Kind {
	case value.I64:
		epochMillis = v.I64
	case value.F64:
		epochMillis = int64(v.F64 * 1000)
	default:
		return 0, fmt.Errorf("date-string column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	id := c.tsD.Intern(v.Str, epochMillis)
	c.ids = append(c.ids, id)
	c.tree.MarkValue(c.nodeID, int64(id), v.Str)
	return 4, nil
}

func (c *dateStringColumn) Store(w io.Writer) error {
	for _, id := range c.ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("%w: date-string column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
	}
	return nil
}

func (c *dateStringColumn) NodeID() int { return c.nodeID }
func (c *dateStringColumn) Kind() schematree.NodeType {
	if c.isFloat {
		return schematree.FloatDateString
	}
	return schematree.DateString
}
func (c *dateStringColumn) Rows() int { return len(c.ids) }
