package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	billy "github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg/oj"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/column"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schemaset"
	"github.com/clpstructured/clps/internal/schematree"
)

// Reader mirrors Writer: given one archive split's directory, it
// rebuilds records schema by schema. It shares the global schema tree
// and schema-set map (loaded once via LoadGlobalState) but owns its own
// copy of the split's local dictionary snapshots, since those are
// per-archive (spec §4.7).
type Reader struct {
	fs  billy.Filesystem
	dir string

	tree      *schematree.Tree
	schemaMap *schemaset.Map
	dicts     Dictionaries
	meta      Metadata
	rewrites  map[int]int // old_id -> new_id (VarValue node), scoped to this split only
}

// OpenReader loads the process-global schema tree and schema-set map
// from baseDir, then the local dictionary snapshots and metadata from
// baseDir/splitID.
func OpenReader(fs billy.Filesystem, baseDir, splitID string) (*Reader, error) {
	tree, schemaMap, err := LoadGlobalState(fs, baseDir)
	if err != nil {
		return nil, err
	}

	dir := fs.Join(baseDir, splitID)
	varD, err := readCompressed(fs, fs.Join(dir, "var.dict"), dict.Load)
	if err != nil {
		return nil, err
	}
	logD, err := readCompressed(fs, fs.Join(dir, "log.dict"), dict.Load)
	if err != nil {
		return nil, err
	}
	arrD, err := readCompressed(fs, fs.Join(dir, "array.dict"), dict.Load)
	if err != nil {
		return nil, err
	}
	tsD, err := readCompressed(fs, fs.Join(dir, "timestamp.dict"), dict.LoadTimestamp)
	if err != nil {
		return nil, err
	}
	meta, err := ReadMetadata(fs, dir)
	if err != nil {
		return nil, err
	}
	rewrites, err := readRewrites(fs, dir)
	if err != nil {
		return nil, err
	}

	return &Reader{
		fs:        fs,
		dir:       dir,
		tree:      tree,
		schemaMap: schemaMap,
		dicts:     Dictionaries{Var: varD, LogType: logD, Array: arrD, Timestamp: tsD},
		meta:      meta,
		rewrites:  rewrites,
	}, nil
}

// Metadata returns this split's row/timestamp summary.
func (rd *Reader) Metadata() Metadata { return rd.meta }

// Dicts exposes this split's local dictionary snapshots for callers that
// build secondary indexes over dictionary tokens (internal/catalog).
func (rd *Reader) Dicts() Dictionaries { return rd.dicts }

// Schemas returns the (schema, schema_id) pairs this split actually
// wrote encoded_messages for. A split only ever sees a subset of the
// schema_ids interned globally across the run (spec §4.6), so this
// enumerates the encoded_messages directory on disk instead of the
// global schema-set map; the map includes schema_ids this split never
// flushed a column file for, which ReadSchema has no way to serve.
func (rd *Reader) Schemas() ([]schemaset.SchemaIDPair, error) {
	dir := rd.fs.Join(rd.dir, encodedMessagesDir)
	entries, err := rd.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", clperr.ErrIoFailure, dir, err)
	}
	out := make([]schemaset.SchemaIDPair, 0, len(entries))
	for _, entry := range entries {
		id, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		schema := rd.schemaMap.Lookup(id)
		if schema == nil {
			return nil, fmt.Errorf("%w: schema_id %d has a column file but no entry in the schema map", clperr.ErrInvariantViolation, id)
		}
		out = append(out, schemaset.SchemaIDPair{Schema: schema, SchemaID: id})
	}
	return out, nil
}

// leafPlan is one real (non-constant, non-structural) column slated for
// decoding, in the same ascending-node-id order SchemaWriter wrote it.
type leafPlan struct {
	nodeID int
	typ    schematree.NodeType
	path   []string
}

// constantPlan is a node collapsed by rewrite_by_frequency: its value is
// the same on every row and was never written as a column.
type constantPlan struct {
	path []string
	text string
	typ  schematree.NodeType
}

// structuralPlan is a path that needs no per-row data at all: a null
// leaf, or an object touched but never populated (e.g. `"a": {}`).
type structuralPlan struct {
	path  []string
	value any
}

// planSchema walks schemaID's node-id set (ascending) and classifies
// every node into exactly one of: a real column to decode, a
// rewrite-collapsed constant, or a structural (null/empty-object) leaf
// needing no decode at all.
func (rd *Reader) planSchema(schema *schemaset.Schema) ([]leafPlan, []constantPlan, []structuralPlan, error) {
	var leaves []leafPlan
	var consts []constantPlan
	var structs []structuralPlan

	for _, id := range schema.NodeIDs() {
		n := rd.tree.Node(id)
		if n == nil {
			return nil, nil, nil, fmt.Errorf("%w: schema references unknown node %d", clperr.ErrInvariantViolation, id)
		}
		path := nodePathSegments(rd.tree, id)

		switch {
		case n.Type == schematree.NullValue:
			structs = append(structs, structuralPlan{path: path, value: nil})
		case n.Type == schematree.Object:
			if !objectHasChildInSchema(rd.tree, n, schema) {
				structs = append(structs, structuralPlan{path: path, value: map[string]any{}})
			}
		default:
			if newID, ok := rd.rewrites[id]; ok {
				vv := rd.tree.Node(newID)
				if vv == nil {
					return nil, nil, nil, fmt.Errorf("%w: rewrite target node %d missing", clperr.ErrInvariantViolation, newID)
				}
				consts = append(consts, constantPlan{path: path, text: vv.Key, typ: n.Type})
				continue
			}
			leaves = append(leaves, leafPlan{nodeID: id, typ: n.Type, path: path})
		}
	}
	return leaves, consts, structs, nil
}

func objectHasChildInSchema(tree *schematree.Tree, n *schematree.Node, schema *schemaset.Schema) bool {
	for _, cid := range n.Children {
		if schema.Contains(cid) {
			return true
		}
	}
	return false
}

// nodePathSegments returns the ancestor key chain from (but not
// including) the synthetic document root down to id, inclusive. The
// root is identified structurally (empty key, Object type, parented at
// the sentinel) rather than by a fixed id, since AddNode's dedup makes
// it whichever id happened to be assigned first.
func nodePathSegments(tree *schematree.Tree, id int) []string {
	var segs []string
	for id != schematree.RootParentID {
		n := tree.Node(id)
		if n == nil {
			break
		}
		if n.ParentID == schematree.RootParentID && n.Key == "" && n.Type == schematree.Object {
			break
		}
		segs = append([]string{n.Key}, segs...)
		id = n.ParentID
	}
	return segs
}

// PathPointer renders segs as an RFC 6901 JSON pointer, for diagnostics
// and for predicates that want to address a column by path rather than
// node id.
func PathPointer(segs []string) string {
	var out []byte
	for _, s := range segs {
		out = append(out, '/')
		for _, r := range s {
			switch r {
			case '~':
				out = append(out, '~', '0')
			case '/':
				out = append(out, '~', '1')
			default:
				out = append(out, string(r)...)
			}
		}
	}
	if out == nil {
		return ""
	}
	return string(out)
}

// decodedColumn holds one leaf column's per-row raw representation
// (cheap: ids or bit patterns, no dictionary lookups yet) plus whatever
// side data (extracted variable-id lists) its type needs to later
// resolve a row to a value.
type decodedColumn struct {
	plan   leafPlan
	raw    []uint64
	varIDs [][]uint32 // only populated for ClpString/Array
}

func (rd *Reader) decodeColumn(r io.Reader, rows int, plan leafPlan) (*decodedColumn, error) {
	dc := &decodedColumn{plan: plan, raw: make([]uint64, rows)}
	switch plan.typ {
	case schematree.Integer:
		for i := 0; i < rows; i++ {
			var v int64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, fmt.Errorf("%w: read int64 column node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			dc.raw[i] = uint64(v)
		}
	case schematree.Float:
		for i := 0; i < rows; i++ {
			var v float64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, fmt.Errorf("%w: read float column node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			dc.raw[i] = math.Float64bits(v)
		}
	case schematree.Boolean:
		buf := make([]byte, 1)
		for i := 0; i < rows; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("%w: read bool column node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			dc.raw[i] = uint64(buf[0])
		}
	case schematree.VarString, schematree.DateString, schematree.FloatDateString:
		for i := 0; i < rows; i++ {
			var id uint32
			if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
				return nil, fmt.Errorf("%w: read id column node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			dc.raw[i] = uint64(id)
		}
	case schematree.ClpString, schematree.Array:
		dc.varIDs = make([][]uint32, rows)
		for i := 0; i < rows; i++ {
			var skeletonID, varCount uint32
			if err := binary.Read(r, binary.LittleEndian, &skeletonID); err != nil {
				return nil, fmt.Errorf("%w: read skeleton id node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			if err := binary.Read(r, binary.LittleEndian, &varCount); err != nil {
				return nil, fmt.Errorf("%w: read var count node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
			}
			ids := make([]uint32, varCount)
			for j := range ids {
				if err := binary.Read(r, binary.LittleEndian, &ids[j]); err != nil {
					return nil, fmt.Errorf("%w: read var id node %d row %d: %v", clperr.ErrIoFailure, plan.nodeID, i, err)
				}
			}
			dc.raw[i] = uint64(skeletonID)
			dc.varIDs[i] = ids
		}
	default:
		return nil, fmt.Errorf("%w: node %d has non-leaf type %v", clperr.ErrInvariantViolation, plan.nodeID, plan.typ)
	}
	return dc, nil
}

// resolve converts row i's raw representation into the value that
// belongs in the reconstructed document, running dictionary lookups and
// detokenization only now (after PreFilter has already had its chance to
// reject the row cheaply).
func (rd *Reader) resolve(dc *decodedColumn, i int) (any, error) {
	switch dc.plan.typ {
	case schematree.Integer:
		return int64(dc.raw[i]), nil
	case schematree.Float:
		return math.Float64frombits(dc.raw[i]), nil
	case schematree.Boolean:
		return dc.raw[i] != 0, nil
	case schematree.VarString:
		tok, ok := rd.dicts.Var.Lookup(uint32(dc.raw[i]))
		if !ok {
			return nil, fmt.Errorf("%w: var dict missing id %d", clperr.ErrInvariantViolation, dc.raw[i])
		}
		return tok, nil
	case schematree.DateString, schematree.FloatDateString:
		entry, ok := rd.dicts.Timestamp.Lookup(uint32(dc.raw[i]))
		if !ok {
			return nil, fmt.Errorf("%w: timestamp dict missing id %d", clperr.ErrInvariantViolation, dc.raw[i])
		}
		return entry.Raw, nil
	case schematree.ClpString, schematree.Array:
		templateD := rd.dicts.LogType
		if dc.plan.typ == schematree.Array {
			templateD = rd.dicts.Array
		}
		skeleton, ok := templateD.Lookup(uint32(dc.raw[i]))
		if !ok {
			return nil, fmt.Errorf("%w: template dict missing id %d", clperr.ErrInvariantViolation, dc.raw[i])
		}
		vars := make([]string, len(dc.varIDs[i]))
		for j, vid := range dc.varIDs[i] {
			tok, ok := rd.dicts.Var.Lookup(vid)
			if !ok {
				return nil, fmt.Errorf("%w: var dict missing id %d", clperr.ErrInvariantViolation, vid)
			}
			vars[j] = tok
		}
		text := column.Detokenize(skeleton, vars)
		if dc.plan.typ == schematree.Array {
			parsed, err := oj.Parse([]byte(text))
			if err != nil {
				return nil, fmt.Errorf("%w: reparse array body: %v", clperr.ErrMalformedInput, err)
			}
			return parsed, nil
		}
		return text, nil
	default:
		return nil, fmt.Errorf("%w: node %d has non-leaf type %v", clperr.ErrInvariantViolation, dc.plan.nodeID, dc.plan.typ)
	}
}

func setAtPath(doc map[string]any, path []string, v any) {
	cur := doc
	for i, seg := range path {
		if i == len(path)-1 {
			cur[seg] = v
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

// ReadSchema reads every row stored for schemaID under this split and
// returns the rows that pass pred, each as a reconstructed
// map[string]any document. pred may be nil, meaning accept every row.
func (rd *Reader) ReadSchema(schemaID int, pred Predicate) ([]map[string]any, error) {
	if pred == nil {
		pred = AcceptAll{}
	}
	schema := rd.schemaMap.Lookup(schemaID)
	if schema == nil {
		return nil, fmt.Errorf("%w: unknown schema_id %d", clperr.ErrInvariantViolation, schemaID)
	}
	leaves, consts, structs, err := rd.planSchema(schema)
	if err != nil {
		return nil, err
	}

	path := rd.fs.Join(rd.dir, encodedMessagesDir, fmt.Sprintf("%d", schemaID))
	f, err := rd.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var rowCount uint32
	if err := binary.Read(dec, binary.LittleEndian, &rowCount); err != nil {
		return nil, fmt.Errorf("%w: read row_count for schema %d: %v", clperr.ErrIoFailure, schemaID, err)
	}

	decoded := make([]*decodedColumn, len(leaves))
	for i, plan := range leaves {
		dc, err := rd.decodeColumn(dec, int(rowCount), plan)
		if err != nil {
			return nil, err
		}
		decoded[i] = dc
	}

	template := map[string]any{}
	for _, s := range structs {
		if len(s.path) == 0 {
			continue
		}
		setAtPath(template, s.path, s.value)
	}

	out := make([]map[string]any, 0, rowCount)
	rawIDs := make([]uint64, len(decoded))
rows:
	for row := 0; row < int(rowCount); row++ {
		for i, dc := range decoded {
			rawIDs[i] = dc.raw[row]
		}
		if !pred.PreFilter(schemaID, rawIDs) {
			continue rows
		}

		doc := cloneTemplate(template)
		for _, c := range consts {
			if len(c.path) == 0 {
				continue
			}
			setAtPath(doc, c.path, constantValue(c))
		}
		for _, dc := range decoded {
			v, err := rd.resolve(dc, row)
			if err != nil {
				return nil, err
			}
			if len(dc.plan.path) == 0 {
				continue
			}
			setAtPath(doc, dc.plan.path, v)
		}

		if pred.Filter(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func cloneTemplate(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			out[k] = cloneTemplate(m)
			continue
		}
		out[k] = v
	}
	return out
}

// constantValue returns a rewrite-collapsed node's value in the same Go
// representation resolve would have produced for a live column of that
// type; the on-disk form is always the node's StringVal text
// (schematree.Tree.RewriteByFrequency), so numeric types are re-parsed.
func constantValue(c constantPlan) any {
	switch c.typ {
	case schematree.Boolean:
		return c.text == "true"
	case schematree.Integer:
		if n, err := strconv.ParseInt(c.text, 10, 64); err == nil {
			return n
		}
		return c.text
	case schematree.Float:
		if f, err := strconv.ParseFloat(c.text, 64); err == nil {
			return f
		}
		return c.text
	case schematree.Array:
		if parsed, err := oj.Parse([]byte(c.text)); err == nil {
			return parsed
		}
		return c.text
	default:
		return c.text
	}
}
