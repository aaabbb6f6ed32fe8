package schematree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddNodeDedup(t *testing.T) {
	tree := New()
	root := tree.AddNode(RootParentID, Object, "")

	a1 := tree.AddNode(root, Integer, "a")
	a2 := tree.AddNode(root, Integer, "a")
	require.Equal(t, a1, a2, "same (parent,key,type) triple must return the same id")
	require.Equal(t, 2, tree.Node(a1).Count)

	// Different type under the same (parent, key) is a distinct node.
	aStr := tree.AddNode(root, VarString, "a")
	require.NotEqual(t, a1, aStr)
}

func TestCardinalityTransitions(t *testing.T) {
	tree := New()
	root := tree.AddNode(RootParentID, Object, "")
	n := tree.AddNode(root, Integer, "x")

	require.Equal(t, Uninitialized, tree.Node(n).State)

	tree.MarkValue(n, 1, "1")
	require.Equal(t, CardinalityOne, tree.Node(n).State)

	tree.MarkValue(n, 1, "1")
	require.Equal(t, CardinalityOne, tree.Node(n).State, "repeating the same value must not flip state")

	tree.MarkValue(n, 2, "2")
	require.Equal(t, CardinalityMany, tree.Node(n).State)

	tree.MarkValue(n, 1, "1")
	require.Equal(t, CardinalityMany, tree.Node(n).State, "state never regresses")
}

func TestRewriteByFrequency(t *testing.T) {
	tree := New()
	root := tree.AddNode(RootParentID, Object, "")
	a := tree.AddNode(root, Integer, "a")
	b := tree.AddNode(root, VarString, "b")

	tree.MarkValue(a, 1, "1")
	tree.MarkValue(b, 0, "x")

	rewrites := tree.RewriteByFrequency()
	require.Len(t, rewrites, 2)

	byOld := make(map[int]Rewrite)
	for _, r := range rewrites {
		byOld[r.OldID] = r
	}

	ra, ok := byOld[a]
	require.True(t, ok)
	newNode := tree.Node(ra.NewID)
	require.Equal(t, VarValue, newNode.Type)
	require.Equal(t, "1", newNode.Key)
	require.Equal(t, a, newNode.ParentID)

	rb, ok := byOld[b]
	require.True(t, ok)
	require.Equal(t, "x", tree.Node(rb.NewID).Key)
}

func TestRewriteSkipsCardinalityMany(t *testing.T) {
	tree := New()
	root := tree.AddNode(RootParentID, Object, "")
	a := tree.AddNode(root, Integer, "a")
	tree.MarkValue(a, 1, "1")
	tree.MarkValue(a, 2, "2")

	rewrites := tree.RewriteByFrequency()
	require.Empty(t, rewrites)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	tree := New()
	root := tree.AddNode(RootParentID, Object, "")
	tree.AddNode(root, Integer, "a")
	tree.AddNode(root, VarString, "b")

	var buf bytes.Buffer
	require.NoError(t, tree.Store(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, tree.Len(), loaded.Len())
	for i := 0; i < tree.Len(); i++ {
		require.Equal(t, tree.Node(i).Key, loaded.Node(i).Key)
		require.Equal(t, tree.Node(i).Type, loaded.Node(i).Type)
		require.Equal(t, tree.Node(i).ParentID, loaded.Node(i).ParentID)
	}

	// The loaded tree's dedup index must still work.
	dup := loaded.AddNode(root, Integer, "a")
	require.Equal(t, 1, dup)
}
