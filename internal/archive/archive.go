// Package archive implements the per-schema column-group writer, the
// archive writer that owns the shared dictionaries and schema tree for
// one ingestion run, and the reader that mirrors it. See spec §4.5-4.7.
package archive

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/column"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/walker"
)

const encodedMessagesDir = "encoded_messages"

// Dictionaries bundles the four shared, process-global dictionaries an
// ArchiveWriter writes through. They outlive any individual writer and
// are shared by reference across successive archives in one ingestion
// run, so that dictionary ids stay stable across splits.
type Dictionaries struct {
	Var       *dict.Dictionary
	LogType   *dict.Dictionary
	Array     *dict.Dictionary
	Timestamp *dict.TimestampDictionary
}

// Writer owns one archive directory's worth of SchemaWriters. It holds a
// borrow of the shared schema tree, schema-set map, and dictionaries;
// callers must not let a Writer outlive the ingestion run those belong
// to.
type Writer struct {
	fs    billy.Filesystem
	dir   string
	id    string
	level int

	tree  *schematree.Tree
	dicts Dictionaries

	writers      map[uint32]*schemaWriter
	payloadBytes int64
	rows         int64

	hasTimestamp bool
	minTS, maxTS int64
}

// Open creates a new archive directory named baseDir/<uuid>, failing with
// clperr.ErrPathConflict if it already exists (vanishingly unlikely given
// uuid.New, but the archive's other invariants assume a fresh directory).
func Open(fs billy.Filesystem, baseDir string, tree *schematree.Tree, dicts Dictionaries, level int) (*Writer, error) {
	id := uuid.New().String()
	dir := fs.Join(baseDir, id)

	if _, err := fs.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: archive directory %s already exists", clperr.ErrPathConflict, dir)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", clperr.ErrIoFailure, dir, err)
	}
	if err := fs.MkdirAll(fs.Join(dir, encodedMessagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", clperr.ErrIoFailure, dir, err)
	}

	return &Writer{
		fs:      fs,
		dir:     dir,
		id:      id,
		level:   level,
		tree:    tree,
		dicts:   dicts,
		writers: make(map[uint32]*schemaWriter),
	}, nil
}

// ID returns the uuid this archive was opened under.
func (w *Writer) ID() string { return w.id }

// Dir returns the archive's directory path.
func (w *Writer) Dir() string { return w.dir }

// AppendMessage looks up or creates the SchemaWriter for msg.SchemaID,
// forwards the message, and accumulates the returned byte count into the
// payload-size counter that drives split decisions. msg.SchemaID and
// msg.Schema must already be populated by the caller (typically via
// schemaset.Map.Add on msg.Schema immediately after the walk).
func (w *Writer) AppendMessage(msg *walker.ParsedMessage) error {
	sw, ok := w.writers[msg.SchemaID]
	if !ok {
		deps := column.Deps{Tree: w.tree, VarDict: w.dicts.Var, LogTypeDict: w.dicts.LogType, ArrayDict: w.dicts.Array, TimestampDict: w.dicts.Timestamp}
		sw = newSchemaWriter(msg.SchemaID, msg.Schema.NodeIDs(), w.tree, deps)
		w.writers[msg.SchemaID] = sw
	}

	n, err := sw.appendMessage(msg)
	if err != nil {
		return err
	}
	w.payloadBytes += int64(n)
	w.rows++
	w.trackTimestamps(msg)
	return nil
}

func (w *Writer) trackTimestamps(msg *walker.ParsedMessage) {
	for _, e := range msg.Entries {
		n := w.tree.Node(e.NodeID)
		if n == nil {
			continue
		}
		var millis int64
		switch n.Type {
		case schematree.DateString:
			millis = e.Value.I64
		case schematree.FloatDateString:
			millis = int64(e.Value.F64 * 1000)
		default:
			continue
		}
		if !w.hasTimestamp || millis < w.minTS {
			w.minTS = millis
		}
		if !w.hasTimestamp || millis > w.maxTS {
			w.maxTS = millis
		}
		w.hasTimestamp = true
	}
}

// GetDataSize returns the sum of the shared dictionaries' current
// uncompressed byte size and this archive's accumulated payload counter;
// an external orchestrator compares this against a configured
// max_encoding_size to decide when to split.
func (w *Writer) GetDataSize() int64 {
	return w.payloadBytes + w.dicts.Var.Size() + w.dicts.LogType.Size() + w.dicts.Array.Size() + w.dicts.Timestamp.Size()
}

// Stats reports this archive's accumulated row and byte counts, mirroring
// the original JsonParser's per-archive num_messages/uncompressed_size
// reporting (spec.md has no name for this; SPEC_FULL.md §4 adds it).
func (w *Writer) Stats() (rows, bytes int64) {
	return w.rows, w.payloadBytes
}

// Close obtains rewrites from the schema tree, applies update_schema to
// every SchemaWriter, flushes each under its (unchanged, see DESIGN.md)
// schema_id, writes this archive's local dictionary snapshots and
// metadata file, and resets the payload counter. The schema tree itself
// and the schema-set map are not written here — they are process-global
// across splits and are persisted once, by the orchestrator, after the
// last archive in a run closes (see StoreGlobalState).
func (w *Writer) Close() error {
	rewrites := w.tree.RewriteByFrequency()

	for schemaID, sw := range w.writers {
		sw.updateSchema(rewrites)
		path := w.fs.Join(w.dir, encodedMessagesDir, fmt.Sprintf("%d", schemaID))
		if err := sw.store(w.fs, path, w.level); err != nil {
			return err
		}
	}

	if err := w.storeRewrites(rewrites); err != nil {
		return err
	}
	if err := w.storeLocalDictionaries(); err != nil {
		return err
	}
	if err := w.storeMetadata(); err != nil {
		return err
	}

	w.writers = make(map[uint32]*schemaWriter)
	w.payloadBytes = 0
	return nil
}

func (w *Writer) storeLocalDictionaries() error {
	files := []struct {
		name  string
		store func(io.Writer) error
	}{
		{"var.dict", w.dicts.Var.Store},
		{"log.dict", w.dicts.LogType.Store},
		{"array.dict", w.dicts.Array.Store},
		{"timestamp.dict", w.dicts.Timestamp.Store},
	}
	for _, f := range files {
		if err := w.writeCompressedFile(f.name, f.store); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeCompressedFile(name string, store func(io.Writer) error) error {
	return writeCompressed(w.fs, w.fs.Join(w.dir, name), w.level, store)
}
