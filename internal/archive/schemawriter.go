package archive

import (
	"encoding/binary"
	"fmt"

	billy "github.com/go-git/go-billy/v5"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/column"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/walker"
)

// schemaWriter is the per-schema_id column group: a vector of typed
// column writers in the schema's canonical (ascending node id) order,
// plus the accumulating row count. See spec §4.5.
type schemaWriter struct {
	schemaID  uint32
	columns   []column.Writer
	nodeIndex map[int]int
	rows      int
}

// newSchemaWriter walks ids in ascending order, instantiating one column
// writer per leaf-typed node and skipping Object/NullValue nodes (they
// carry no per-row payload). The resulting column order is canonical for
// every record sharing this schema.
func newSchemaWriter(schemaID uint32, nodeIDs []int, tree *schematree.Tree, deps column.Deps) *schemaWriter {
	sw := &schemaWriter{schemaID: schemaID, nodeIndex: make(map[int]int, len(nodeIDs))}
	for _, id := range nodeIDs {
		n := tree.Node(id)
		if n == nil || !n.Type.IsLeaf() {
			continue
		}
		w := column.New(id, n.Type, deps)
		if w == nil {
			continue
		}
		sw.nodeIndex[id] = len(sw.columns)
		sw.columns = append(sw.columns, w)
	}
	return sw
}

// appendMessage forwards each (node_id, value) pair to the column at the
// matching node id, regardless of the order msg.Entries happens to be in,
// and returns the total bytes appended.
func (sw *schemaWriter) appendMessage(msg *walker.ParsedMessage) (int, error) {
	total := 0
	for _, e := range msg.Entries {
		idx, ok := sw.nodeIndex[e.NodeID]
		if !ok {
			continue
		}
		n, err := sw.columns[idx].Append(e.Value)
		if err != nil {
			return total, fmt.Errorf("schema %d: %w", sw.schemaID, err)
		}
		total += n
	}
	sw.rows++
	return total, nil
}

// updateSchema drops every column whose node id appears as a rewrite's
// old_id: its values are already captured as the VarValue node's key, so
// the column itself is redundant. Remaining columns keep their relative
// order.
func (sw *schemaWriter) updateSchema(rewrites []schematree.Rewrite) {
	if len(rewrites) == 0 {
		return
	}
	dropped := make(map[int]bool, len(rewrites))
	for _, r := range rewrites {
		dropped[r.OldID] = true
	}
	kept := sw.columns[:0]
	for _, c := range sw.columns {
		if dropped[c.NodeID()] {
			continue
		}
		kept = append(kept, c)
	}
	sw.columns = kept
}

// store opens path for writing under fs and serializes: row_count, then
// each surviving column's bytes in canonical order, all through a zstd
// compressor at level.
func (sw *schemaWriter) store(fs billy.Filesystem, path string, level int) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	enc, err := newEncoder(f, level)
	if err != nil {
		return err
	}
	defer enc.Close()

	if err := binary.Write(enc, binary.LittleEndian, uint32(sw.rows)); err != nil {
		return fmt.Errorf("%w: write row_count for schema %d: %v", clperr.ErrIoFailure, sw.schemaID, err)
	}
	for _, c := range sw.columns {
		want := sw.rows
		if c.Rows() != want {
			return fmt.Errorf("%w: schema %d column node %d has %d rows, want %d", clperr.ErrInvariantViolation, sw.schemaID, c.NodeID(), c.Rows(), want)
		}
		if err := c.Store(enc); err != nil {
			return err
		}
	}
	return nil
}
