// Package catalog provides an optional SQLite introspection database over a
// completed ingestion run: which archives exist, which schemas live in each,
// row counts, and a token -> archive index for "which archives could contain
// this dictionary token" pre-filtering ahead of a full scan (spec.md has no
// name for this; SPEC_FULL.md's domain stack adds it as a convenience layer
// the reader's sequential scan doesn't need but a CLI `inspect`/`search`
// surface benefits from).
package catalog

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	billy "github.com/go-git/go-billy/v5"
	_ "modernc.org/sqlite"

	"github.com/clpstructured/clps/internal/archive"
	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
)

// Catalog batches writes into one SQLite database across an entire
// ingestion run, committing every batchSize rows, mirroring
// internal/ingest/sqlite_writer.go's SQLiteWriter.
type Catalog struct {
	db *sql.DB
	tx *sql.Tx

	stmtArchive *sql.Stmt
	stmtSchema  *sql.Stmt

	batchSize int
	count     int
	mu        sync.Mutex

	refs     *refsModule
	bitmaps  map[string]*roaring.Bitmap
	archiveN map[string]uint32
	nextNum  uint32
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS archives (
	archive_num   INTEGER PRIMARY KEY,
	archive_id    TEXT UNIQUE NOT NULL,
	dir           TEXT NOT NULL,
	row_count     INTEGER NOT NULL,
	min_ts        INTEGER,
	max_ts        INTEGER,
	has_timestamp INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS schemas (
	archive_id TEXT NOT NULL,
	schema_id  INTEGER NOT NULL,
	row_count  INTEGER NOT NULL,
	PRIMARY KEY (archive_id, schema_id)
);
CREATE TABLE IF NOT EXISTS token_refs (
	token  TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
);
`

// Open opens (creating if absent) the catalog database at dbPath, applies
// the same bulk-load PRAGMAs as the teacher's SQLiteWriter, and registers
// the clps_refs virtual table for this connection.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open catalog %s: %v", clperr.ErrIoFailure, dbPath, err)
	}
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", clperr.ErrIoFailure, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", clperr.ErrIoFailure, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create catalog schema: %v", clperr.ErrIoFailure, err)
	}

	refs, err := registerRefsModule()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	refs.RegisterDB(dbPath, db)

	if _, err := db.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS clps_refs USING clps_token_refs(%q)`, dbPath)); err != nil {
		_ = db.Close()
		refs.UnregisterDB(dbPath)
		return nil, fmt.Errorf("%w: create clps_refs virtual table: %v", clperr.ErrIoFailure, err)
	}

	c := &Catalog{
		db:        db,
		batchSize: 10000,
		refs:      refs,
		bitmaps:   make(map[string]*roaring.Bitmap),
		archiveN:  make(map[string]uint32),
	}
	if err := c.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) beginTx() error {
	var err error
	c.tx, err = c.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin catalog tx: %v", clperr.ErrIoFailure, err)
	}
	c.stmtArchive, err = c.tx.Prepare(`
		INSERT OR REPLACE INTO archives (archive_num, archive_id, dir, row_count, min_ts, max_ts, has_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare archive insert: %v", clperr.ErrIoFailure, err)
	}
	c.stmtSchema, err = c.tx.Prepare(`
		INSERT OR REPLACE INTO schemas (archive_id, schema_id, row_count) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare schema insert: %v", clperr.ErrIoFailure, err)
	}
	return nil
}

func (c *Catalog) commitTx() error {
	if c.stmtArchive != nil {
		_ = c.stmtArchive.Close()
	}
	if c.stmtSchema != nil {
		_ = c.stmtSchema.Close()
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit catalog tx: %v", clperr.ErrIoFailure, err)
	}
	return nil
}

// RecordArchive registers one closed archive and its metadata.
func (c *Catalog) RecordArchive(archiveID, dir string, meta archive.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	num, ok := c.archiveN[archiveID]
	if !ok {
		num = c.nextNum
		c.nextNum++
		c.archiveN[archiveID] = num
	}

	hasTS := 0
	if meta.HasTimestamp {
		hasTS = 1
	}
	if _, err := c.stmtArchive.Exec(num, archiveID, dir, meta.RowCount, meta.MinTS, meta.MaxTS, hasTS); err != nil {
		return fmt.Errorf("%w: insert archive %s: %v", clperr.ErrIoFailure, archiveID, err)
	}
	return c.maybeFlush()
}

// RecordSchema registers one schema's row count within an archive.
func (c *Catalog) RecordSchema(archiveID string, schemaID int, rows int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.stmtSchema.Exec(archiveID, schemaID, rows); err != nil {
		return fmt.Errorf("%w: insert schema %d of %s: %v", clperr.ErrIoFailure, schemaID, archiveID, err)
	}
	return c.maybeFlush()
}

// RecordTokenRef marks that dictionary token appears somewhere in archiveID.
// Bitmaps accumulate in memory and flush to token_refs on Close/Flush, same
// as the teacher's node_refs table but keyed by dictionary token instead of
// source-graph token.
func (c *Catalog) RecordTokenRef(token, archiveID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	num, ok := c.archiveN[archiveID]
	if !ok {
		num = c.nextNum
		c.nextNum++
		c.archiveN[archiveID] = num
	}
	rb, ok := c.bitmaps[token]
	if !ok {
		rb = roaring.New()
		c.bitmaps[token] = rb
	}
	rb.Add(num)
}

func (c *Catalog) maybeFlush() error {
	c.count++
	if c.count < c.batchSize {
		return nil
	}
	if err := c.commitTx(); err != nil {
		return err
	}
	if err := c.beginTx(); err != nil {
		return err
	}
	c.count = 0
	return nil
}

func (c *Catalog) flushBitmaps() error {
	stmt, err := c.tx.Prepare(`INSERT OR REPLACE INTO token_refs (token, bitmap) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare token_refs insert: %v", clperr.ErrIoFailure, err)
	}
	defer func() { _ = stmt.Close() }()

	for token, rb := range c.bitmaps {
		blob, err := rb.MarshalBinary()
		if err != nil {
			return fmt.Errorf("%w: marshal bitmap for %q: %v", clperr.ErrIoFailure, token, err)
		}
		if _, err := stmt.Exec(token, blob); err != nil {
			return fmt.Errorf("%w: insert token_refs for %q: %v", clperr.ErrIoFailure, token, err)
		}
	}
	return nil
}

// Flush commits every pending archive/schema row and token bitmap so they
// become visible to queries run against c.DB() (database/sql may hand a
// query a different pooled connection than the one holding the open write
// transaction, so an uncommitted insert is otherwise invisible to readers —
// same reasoning as SQLiteWriter.GetNode's comment on querying via w.tx).
// Reopens a fresh transaction afterward so further Record* calls keep
// working.
func (c *Catalog) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.flushBitmaps(); err != nil {
		return err
	}
	for token := range c.bitmaps {
		delete(c.bitmaps, token)
	}
	if err := c.commitTx(); err != nil {
		return err
	}
	if err := c.beginTx(); err != nil {
		return err
	}
	c.count = 0
	return nil
}

// Close flushes pending bitmaps and the open transaction, then closes the
// underlying database and unregisters it from the refs virtual table.
func (c *Catalog) Close(dbPath string) error {
	if err := c.Flush(); err != nil {
		c.mu.Lock()
		_ = c.tx.Rollback()
		_ = c.db.Close()
		c.mu.Unlock()
		c.refs.UnregisterDB(dbPath)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs.UnregisterDB(dbPath)
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("%w: close catalog: %v", clperr.ErrIoFailure, err)
	}
	return nil
}

// DB exposes the underlying *sql.DB for ad-hoc queries (e.g. the `inspect`
// CLI subcommand running arbitrary SQL, including against clps_refs).
func (c *Catalog) DB() *sql.DB { return c.db }

// Build populates a fresh catalog database at dbPath from a completed
// ingestion run's archives, reading each through archive.OpenReader. Besides
// metadata and the dictionary snapshots needed for the token index, it reads
// every schema's column file in full (through ReadSchema) to count that
// schema's rows; it does no random-access row lookup (spec.md §1).
func Build(fs billy.Filesystem, baseDir, dbPath string, archiveIDs []string) (*Catalog, error) {
	cat, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	for _, id := range archiveIDs {
		rd, err := archive.OpenReader(fs, baseDir, id)
		if err != nil {
			_ = cat.Close(dbPath)
			return nil, err
		}

		meta := rd.Metadata()
		if err := cat.RecordArchive(id, fs.Join(baseDir, id), meta); err != nil {
			_ = cat.Close(dbPath)
			return nil, err
		}

		pairs, err := rd.Schemas()
		if err != nil {
			_ = cat.Close(dbPath)
			return nil, err
		}
		for _, pair := range pairs {
			rows, err := rd.ReadSchema(pair.SchemaID, nil)
			if err != nil {
				_ = cat.Close(dbPath)
				return nil, err
			}
			if err := cat.RecordSchema(id, pair.SchemaID, int64(len(rows))); err != nil {
				_ = cat.Close(dbPath)
				return nil, err
			}
		}

		dicts := rd.Dicts()
		for _, d := range []*dict.Dictionary{dicts.Var, dicts.LogType, dicts.Array} {
			for tokID := uint32(0); tokID < uint32(d.Len()); tokID++ {
				tok, ok := d.Lookup(tokID)
				if !ok {
					continue
				}
				cat.RecordTokenRef(tok, id)
			}
		}
	}

	if err := cat.Flush(); err != nil {
		_ = cat.Close(dbPath)
		return nil, err
	}
	return cat, nil
}
