// Package orchestrator drives one compress run end to end: it owns the
// process-global schema tree, schema-set map, and dictionaries; feeds
// records from one or more inputs through a walker; rotates archive
// writers on a configured size threshold; and persists the shared state
// once at the end. Nothing in internal/schematree, internal/schemaset,
// internal/walker, internal/column, internal/dict, or internal/archive
// needs to know a run can span multiple archives — that sequencing
// lives here, grounded on the teacher's internal/ingest/engine.go driver
// loop.
package orchestrator

import (
	"fmt"
	"io"
	"log"

	billy "github.com/go-git/go-billy/v5"

	"github.com/clpstructured/clps/internal/archive"
	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/ingestrecord"
	"github.com/clpstructured/clps/internal/schemaset"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/walker"
)

// Stats summarizes one Run's ingestion, the orchestrator-level
// equivalent of JsonParser's per-run totals (SPEC_FULL §4).
type Stats struct {
	ArchiveIDs    []string
	RecordsRead   int64
	RecordsOK     int64
	RecordsFailed int64
}

// Run owns the state shared across every archive written in one
// ingestion: the schema tree, the schema-set map, and the four
// dictionaries never reset between archives, only the per-archive
// payload counters do (ArchiveWriter.Close already handles that).
type Run struct {
	fs      billy.Filesystem
	baseDir string
	level   int
	maxSize int64

	tree      *schematree.Tree
	schemaMap *schemaset.Map
	dicts     archive.Dictionaries
	walker    *walker.Walker

	current *archive.Writer
	stats   Stats
}

// New starts a fresh run writing under baseDir.
func New(fs billy.Filesystem, baseDir string, timestampColumn []string, level int, maxEncodingSize int64) *Run {
	tree := schematree.New()
	return &Run{
		fs:      fs,
		baseDir: baseDir,
		level:   level,
		maxSize: maxEncodingSize,
		tree:    tree,
		schemaMap: schemaset.New(),
		dicts: archive.Dictionaries{
			Var:       dict.New(),
			LogType:   dict.New(),
			Array:     dict.New(),
			Timestamp: dict.NewTimestamp(),
		},
		walker: walker.New(tree, walker.Config{TimestampColumn: timestampColumn}),
	}
}

// IngestReader scans newline-delimited JSON records from r, walking and
// appending each to the current (or a freshly rotated) archive. A
// malformed line is logged and skipped, matching spec.md §7; it never
// aborts the run.
func (run *Run) IngestReader(r io.Reader) error {
	sc := ingestrecord.NewScanner(r)
	for sc.Scan() {
		run.stats.RecordsRead++
		if err := run.ingestOne(sc.Record()); err != nil {
			return err
		}
		run.stats.RecordsOK++
	}
	if skipped := sc.Skipped(); skipped > 0 {
		run.stats.RecordsRead += int64(skipped)
		run.stats.RecordsFailed += int64(skipped)
		log.Printf("clps: skipped %d malformed record(s), last error: %v", skipped, sc.Err())
	}
	return nil
}

// IngestFile opens path under the run's filesystem and ingests it.
func (run *Run) IngestFile(path string) error {
	f, err := run.fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()
	return run.IngestReader(f)
}

func (run *Run) ingestOne(doc map[string]any) error {
	msg, schema := run.walker.Walk(doc)
	msg.SchemaID = uint32(run.schemaMap.Add(schema))

	if run.current == nil {
		w, err := archive.Open(run.fs, run.baseDir, run.tree, run.dicts, run.level)
		if err != nil {
			return err
		}
		run.current = w
	}

	if err := run.current.AppendMessage(msg); err != nil {
		return err
	}

	if run.current.GetDataSize() >= run.maxSize {
		if err := run.rotate(); err != nil {
			return err
		}
	}
	return nil
}

// rotate closes the current archive (flushing its local dictionary
// snapshots, metadata, and collapsed columns) and clears it so the next
// record opens a fresh one.
func (run *Run) rotate() error {
	if run.current == nil {
		return nil
	}
	id := run.current.ID()
	if err := run.current.Close(); err != nil {
		return err
	}
	run.stats.ArchiveIDs = append(run.stats.ArchiveIDs, id)
	run.current = nil
	return nil
}

// Close flushes any archive still open and persists the process-global
// schema tree, schema-set map, and canonical timestamp dictionary
// exactly once. Call this after every input has been ingested.
func (run *Run) Close() (Stats, error) {
	if err := run.rotate(); err != nil {
		return run.stats, err
	}
	if err := archive.StoreGlobalState(run.fs, run.baseDir, run.tree, run.schemaMap, run.dicts.Timestamp, run.level); err != nil {
		return run.stats, err
	}
	return run.stats, nil
}
