package walker

import (
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/clpstructured/clps/internal/schemaset"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// Config configures one Walker instance.
type Config struct {
	// TimestampColumn is the ordered key-name path to a designated
	// timestamp leaf, e.g. ["meta", "ts"]. Empty disables timestamp
	// matching entirely for this walker.
	TimestampColumn []string
}

// Walker drives one record at a time through the union schema tree,
// growing it as new (parent, key, type) tuples are observed. A Walker is
// not safe for concurrent use; callers ingesting multiple streams
// concurrently should share the underlying *schematree.Tree only under
// external synchronization, per the single-writer non-goal.
type Walker struct {
	tree   *schematree.Tree
	column []string
}

// New returns a Walker over tree, configured with cfg.
func New(tree *schematree.Tree, cfg Config) *Walker {
	return &Walker{tree: tree, column: cfg.TimestampColumn}
}

// Walk consumes one decoded record (the result of unmarshaling one JSON
// document into Go's any hierarchy — map[string]any, []any, string,
// float64/int64, bool, nil) and returns its ParsedMessage and Schema. The
// top-level value is always an object; a non-object root is rejected by
// the caller before reaching here (see clperr.ErrMalformedInput).
func (w *Walker) Walk(root map[string]any) (*ParsedMessage, *schemaset.Schema) {
	msg := &ParsedMessage{Schema: schemaset.NewSchema()}
	ts := newTsState(w.column)
	w.walkObject(schematree.RootParentID, "", root, 0, ts, msg)
	return msg, msg.Schema
}

// walkObject visits one JSON object's fields. confirmedDepth is how many
// leading keys of the configured timestamp path have matched on the walk
// from the root down to this object (0 at the root), or -1 once this
// branch has diverged from the configured path and can never match
// again, however deep it goes.
func (w *Walker) walkObject(parentID int, key string, obj map[string]any, confirmedDepth int, ts *tsState, msg *ParsedMessage) {
	nodeID := w.tree.AddNode(parentID, schematree.Object, key)
	msg.Schema.Add(nodeID)

	if len(obj) == 0 {
		return
	}
	for k, v := range obj {
		w.walkValue(nodeID, k, v, confirmedDepth, ts, msg)
	}
}

// walkValue dispatches on v's dynamic type and visits it as a child of
// parentID named key. confirmedDepth is the confirmed timestamp-path
// depth of parentID (this key's own depth is confirmedDepth+1).
func (w *Walker) walkValue(parentID int, key string, v any, confirmedDepth int, ts *tsState, msg *ParsedMessage) {
	depth := -1
	matched := false
	if confirmedDepth >= 0 {
		depth = confirmedDepth + 1
		matched = ts.keyMatches(depth, key)
	}

	switch x := v.(type) {
	case nil:
		w.appendLeaf(parentID, key, schematree.NullValue, value.Nil(), msg)

	case map[string]any:
		if len(x) == 0 {
			nodeID := w.tree.AddNode(parentID, schematree.Object, key)
			msg.Schema.Add(nodeID)
			return
		}
		next := -1
		if matched {
			next = depth
		}
		w.walkObject(parentID, key, x, next, ts, msg)

	case []any:
		body := oj.JSON(x)
		w.appendLeaf(parentID, key, schematree.Array, value.ArrayBody(body), msg)

	case string:
		if ts.isFullMatch(depth, matched) {
			ts.disable()
			if epochMillis, ok := parseDateString(x); ok {
				w.appendLeaf(parentID, key, schematree.DateString, value.Value{Kind: value.I64, I64: epochMillis, Str: x}, msg)
				return
			}
			// Open question resolution: the matched leaf is neither
			// numeric nor a parseable date. disable() above already
			// cleared matching for the rest of the record; fall through
			// and type the leaf normally without ingesting it as a
			// timestamp.
		}
		if strings.ContainsRune(x, ' ') {
			w.appendLeaf(parentID, key, schematree.ClpString, value.String(x), msg)
		} else {
			w.appendLeaf(parentID, key, schematree.VarString, value.String(x), msg)
		}

	case bool:
		if ts.isFullMatch(depth, matched) {
			// A matched path whose leaf is a bool can never be a
			// timestamp; clear matching without ingesting (same open
			// question resolution as the string case).
			ts.disable()
		}
		w.appendLeaf(parentID, key, schematree.Boolean, value.Boolean(x), msg)

	case int64:
		if ts.isFullMatch(depth, matched) {
			ts.disable()
			w.appendLeaf(parentID, key, schematree.DateString, value.Value{Kind: value.I64, I64: x, Str: strconv.FormatInt(x, 10)}, msg)
			return
		}
		w.appendLeaf(parentID, key, schematree.Integer, value.Int64(x), msg)

	case float64:
		if ts.isFullMatch(depth, matched) {
			ts.disable()
			w.appendLeaf(parentID, key, schematree.FloatDateString, value.Value{Kind: value.F64, F64: x, Str: strconv.FormatFloat(x, 'g', -1, 64)}, msg)
			return
		}
		w.appendLeaf(parentID, key, schematree.Float, value.Float64(x), msg)

	default:
		// Any other ojg-decoded scalar is treated as an opaque string;
		// ojg itself only ever produces the types above, so this is a
		// defensive fallback, not a documented input shape.
		w.appendLeaf(parentID, key, schematree.VarString, value.String(oj.JSON(x)), msg)
	}
}

// appendLeaf adds the leaf node, records it in the schema, and appends the
// (node_id, value) pair to the message.
func (w *Walker) appendLeaf(parentID int, key string, typ schematree.NodeType, v value.Value, msg *ParsedMessage) {
	nodeID := w.tree.AddNode(parentID, typ, key)
	msg.Schema.Add(nodeID)
	msg.Entries = append(msg.Entries, Entry{NodeID: nodeID, Value: v})
}
