package schematree

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Store serializes the tree to w in insertion order: node_count, then for
// each node: id, parent_id, key_length, key_bytes, type. w is expected to
// already be a compressing writer (e.g. a zstd encoder) — compression
// itself is a collaborator's concern, not the tree's.
func (t *Tree) Store(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.nodes))); err != nil {
		return fmt.Errorf("write node_count: %w", err)
	}
	for _, n := range t.nodes {
		if err := binary.Write(w, binary.LittleEndian, int32(n.ID)); err != nil {
			return fmt.Errorf("write id %d: %w", n.ID, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(n.ParentID)); err != nil {
			return fmt.Errorf("write parent_id %d: %w", n.ID, err)
		}
		key := []byte(n.Key)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(key))); err != nil {
			return fmt.Errorf("write key_length %d: %w", n.ID, err)
		}
		if _, err := w.Write(key); err != nil {
			return fmt.Errorf("write key_bytes %d: %w", n.ID, err)
		}
		if err := binary.Write(w, binary.LittleEndian, n.Type); err != nil {
			return fmt.Errorf("write type %d: %w", n.ID, err)
		}
	}
	return nil
}

// Load reconstructs a tree from the format written by Store. The
// dedup index is rebuilt so the tree remains usable by AddNode (e.g. for
// a process that reopens a shared tree across splits).
func Load(r io.Reader) (*Tree, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read node_count: %w", err)
	}

	t := New()
	t.nodes = make([]*Node, 0, count)
	for i := uint32(0); i < count; i++ {
		var id, parentID int32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &parentID); err != nil {
			return nil, fmt.Errorf("read parent_id: %w", err)
		}
		var keyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, fmt.Errorf("read key_length: %w", err)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("read key_bytes: %w", err)
		}
		var typ NodeType
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return nil, fmt.Errorf("read type: %w", err)
		}

		n := &Node{
			ID:       int(id),
			ParentID: int(parentID),
			Key:      string(key),
			Type:     typ,
		}
		t.nodes = append(t.nodes, n)
		t.index[dedupKey{parentID: n.ParentID, key: n.Key, typ: n.Type}] = n.ID
		if n.ParentID != RootParentID {
			if parent := t.Node(n.ParentID); parent != nil {
				parent.Children = append(parent.Children, n.ID)
			}
		}
	}
	return t, nil
}
