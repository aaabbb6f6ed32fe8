package schematree

import "fmt"

type dedupKey struct {
	parentID int
	key      string
	typ      NodeType
}

// Tree is the union schema tree. Nodes reference each other by integer id
// only; the backing storage is a dense slice, which sidesteps any
// cyclic-ownership question and keeps the rewrite pass a simple DFS over
// indices.
type Tree struct {
	nodes []*Node
	index map[dedupKey]int
}

// New returns an empty tree. Callers typically follow with AddNode at
// RootParentID to materialize the root (id 0).
func New() *Tree {
	return &Tree{
		index: make(map[dedupKey]int),
	}
}

// Len returns the number of nodes created so far, including any
// rewrite-time VarValue nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for id, or nil if out of range.
func (t *Tree) Node(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// AddNode deduplicates on (parent_id, key_name, type): it creates and
// appends a child of parent_id if absent, or returns the existing node.
// Either way it increments count on the returned node and returns its id.
func (t *Tree) AddNode(parentID int, typ NodeType, key string) int {
	k := dedupKey{parentID: parentID, key: key, typ: typ}
	if id, ok := t.index[k]; ok {
		t.nodes[id].Count++
		return id
	}

	id := len(t.nodes)
	n := &Node{
		ID:       id,
		ParentID: parentID,
		Key:      key,
		Type:     typ,
		Count:    1,
	}
	t.nodes = append(t.nodes, n)
	t.index[k] = id

	if parentID != RootParentID {
		if parent := t.Node(parentID); parent != nil {
			parent.Children = append(parent.Children, id)
		}
	}
	return id
}

// MarkValue is called at leaf-assignment time. It advances the node's
// value-state: Uninitialized -> CardinalityOne (stores the value);
// CardinalityOne -> CardinalityMany if numericRepr differs from the
// stored one; otherwise a no-op. Non-numeric leaves should pass a stable
// hash (or 0) and the raw string.
func (t *Tree) MarkValue(id int, numericRepr int64, stringRepr string) {
	n := t.Node(id)
	if n == nil {
		return
	}
	switch n.State {
	case Uninitialized:
		n.State = CardinalityOne
		n.NumericVal = numericRepr
		n.StringVal = stringRepr
	case CardinalityOne:
		if n.NumericVal != numericRepr {
			n.State = CardinalityMany
		}
	case CardinalityMany:
		// already at the terminal state
	}
}

// Rewrite describes one collapsed node: old_id had cardinality one across
// every value observed so far, and new_id is the VarValue child
// synthesized to hold its constant value.
type Rewrite struct {
	OldID int
	NewID int
}

// RewriteByFrequency performs a DFS from the root. For every node
// currently in CardinalityOne it synthesizes a VarValue child whose key
// is the node's stored string value, appends it, and emits the pair
// (node_id, varvalue_id). Children of a collapsed node are not visited —
// they inherit the collapse. It is called at every archive close; a node
// still in CardinalityOne on a later call is emitted again with the same
// VarValue child, since AddNode deduplicates it.
func (t *Tree) RewriteByFrequency() []Rewrite {
	var rewrites []Rewrite
	roots := t.rootIDs()
	var walk func(id int)
	walk = func(id int) {
		n := t.Node(id)
		if n == nil {
			return
		}
		if n.Type.IsLeaf() && n.State == CardinalityOne {
			newID := t.AddNode(id, VarValue, n.StringVal)
			rewrites = append(rewrites, Rewrite{OldID: id, NewID: newID})
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return rewrites
}

// rootIDs returns the ids of every node whose parent is the sentinel —
// almost always just node 0, but the tree tolerates multiple roots.
func (t *Tree) rootIDs() []int {
	var roots []int
	for _, n := range t.nodes {
		if n.ParentID == RootParentID {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Path returns the dot-free ancestor chain of keys from the root down to
// id, inclusive, for diagnostics.
func (t *Tree) Path(id int) string {
	var parts []string
	for cur := t.Node(id); cur != nil; cur = t.Node(cur.ParentID) {
		parts = append([]string{cur.Key}, parts...)
		if cur.ParentID == RootParentID {
			break
		}
	}
	return fmt.Sprint(parts)
}
