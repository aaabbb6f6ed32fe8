package walker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

func TestWalkFlatRecordProducesLeavesAndSchema(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	msg, schema := w.Walk(map[string]any{
		"id":   int64(1),
		"name": "alice",
		"bio":  "loves go and rust",
	})

	require.Len(t, msg.Entries, 3)
	require.Equal(t, 4, schema.Len(), "root object node plus 3 leaves")

	kinds := map[int]schematree.NodeType{}
	for _, e := range msg.Entries {
		kinds[e.NodeID] = tree.Node(e.NodeID).Type
	}
	var types []schematree.NodeType
	for _, k := range kinds {
		types = append(types, k)
	}
	require.Contains(t, types, schematree.Integer)
	require.Contains(t, types, schematree.VarString)
	require.Contains(t, types, schematree.ClpString)
}

func TestWalkDedupesAcrossRecords(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	_, _ = w.Walk(map[string]any{"id": int64(1)})
	_, _ = w.Walk(map[string]any{"id": int64(2)})

	require.Equal(t, 2, tree.Len(), "root object + one 'id' node, shared across records")
	idNode := tree.Node(1)
	require.Equal(t, 2, idNode.Count)
	// Cardinality is marked by the column writers on append, not by the
	// walk itself, so walking alone leaves the node's value state untouched.
	require.Equal(t, schematree.Uninitialized, idNode.State)
}

func TestWalkEmptyObjectEmitsNodeWithoutDescending(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	msg, schema := w.Walk(map[string]any{"meta": map[string]any{}})

	require.Empty(t, msg.Entries, "empty object carries no leaf values")
	require.Equal(t, 2, schema.Len(), "root object + empty 'meta' object node")
}

func TestWalkNestedObjectRecurses(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	msg, _ := w.Walk(map[string]any{
		"user": map[string]any{
			"id": int64(7),
		},
	})

	require.Len(t, msg.Entries, 1)
	require.Equal(t, schematree.Integer, tree.Node(msg.Entries[0].NodeID).Type)
}

func TestWalkArrayStoredAsSingleNode(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	msg, _ := w.Walk(map[string]any{"tags": []any{"a", "b", int64(3)}})

	require.Len(t, msg.Entries, 1)
	require.Equal(t, schematree.Array, tree.Node(msg.Entries[0].NodeID).Type)
}

func TestWalkNullLeaf(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{})

	msg, _ := w.Walk(map[string]any{"deleted_at": nil})

	require.Len(t, msg.Entries, 1)
	require.Equal(t, schematree.NullValue, tree.Node(msg.Entries[0].NodeID).Type)
}

func TestWalkTimestampCaptureIntegerNotDoubleCounted(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	msg, _ := w.Walk(map[string]any{"ts": int64(1710000000), "v": int64(1)})

	require.Len(t, msg.Entries, 2)
	var tsType, vType schematree.NodeType
	for _, e := range msg.Entries {
		n := tree.Node(e.NodeID)
		if n.Key == "ts" {
			tsType = n.Type
		} else {
			vType = n.Type
		}
	}
	require.Equal(t, schematree.DateString, tsType)
	require.Equal(t, schematree.Integer, vType)
}

func TestWalkTimestampCaptureFloat(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	msg, _ := w.Walk(map[string]any{"ts": 1710000000.5})

	require.Len(t, msg.Entries, 1)
	require.Equal(t, schematree.FloatDateString, tree.Node(msg.Entries[0].NodeID).Type)
	require.Equal(t, value.F64, msg.Entries[0].Value.Kind)
}

func TestWalkTimestampNestedPath(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"meta", "ts"}})

	msg, _ := w.Walk(map[string]any{
		"meta": map[string]any{"ts": int64(5), "host": "x"},
		"v":    int64(1),
	})

	require.Len(t, msg.Entries, 3)
	for _, e := range msg.Entries {
		n := tree.Node(e.NodeID)
		if n.Key == "ts" {
			require.Equal(t, schematree.DateString, n.Type)
		}
	}
}

func TestWalkTimestampMismatchSiblingDoesNotBlockOthers(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	// "other" does not match the configured path; "ts" is a sibling that
	// should still be free to match on its own attempt.
	msg, _ := w.Walk(map[string]any{
		"other": map[string]any{"ts": int64(99)},
		"ts":    int64(42),
	})

	var outerTsType, innerTsType schematree.NodeType
	for _, e := range msg.Entries {
		n := tree.Node(e.NodeID)
		if n.Key != "ts" {
			continue
		}
		if n.ParentID == 0 {
			outerTsType = n.Type
		} else {
			innerTsType = n.Type
		}
	}
	require.Equal(t, schematree.DateString, outerTsType, "the real top-level 'ts' must still match")
	require.Equal(t, schematree.Integer, innerTsType, "the nested 'ts' under a mismatched branch is just a plain integer")
}

func TestWalkTimestampNonDateStringClearsWithoutIngesting(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	msg, _ := w.Walk(map[string]any{"ts": "not-a-date"})

	require.Len(t, msg.Entries, 1)
	// "not-a-date" has no space, so it falls back to VarString typing —
	// the open-question resolution: clear match state, don't ingest, and
	// don't mark the node as a timestamp type.
	require.Equal(t, schematree.VarString, tree.Node(msg.Entries[0].NodeID).Type)
}

func TestWalkTimestampBoolClearsWithoutIngesting(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	msg, _ := w.Walk(map[string]any{"ts": true})

	require.Len(t, msg.Entries, 1)
	require.Equal(t, schematree.Boolean, tree.Node(msg.Entries[0].NodeID).Type)
}

func TestWalkTimestampConsumedOnlyOncePerRecord(t *testing.T) {
	tree := schematree.New()
	w := New(tree, Config{TimestampColumn: []string{"ts"}})

	// Two "ts"-named leaves cannot both occur at the top level of one
	// JSON object (keys are unique), so exercise "consumed" across two
	// sequential records instead: each gets its own fresh tsState.
	msg1, _ := w.Walk(map[string]any{"ts": int64(1)})
	msg2, _ := w.Walk(map[string]any{"ts": int64(2)})

	require.Equal(t, schematree.DateString, tree.Node(msg1.Entries[0].NodeID).Type)
	require.Equal(t, schematree.DateString, tree.Node(msg2.Entries[0].NodeID).Type)
}
