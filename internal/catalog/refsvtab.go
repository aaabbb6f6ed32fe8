package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"

	"github.com/clpstructured/clps/internal/clperr"
)

// refsModule implements vtab.Module for the clps_token_refs virtual table,
// exposing token_refs' roaring bitmaps as (token, archive_id) rows. Adapted
// from internal/refsvtab/refs_module.go: modernc.org/sqlite registers
// modules globally at the driver level, not per-DB, so this is a singleton
// keyed by database path exactly as the teacher's RefsModule is keyed by
// graph id.
type refsModule struct {
	mu  sync.RWMutex
	dbs map[string]*sql.DB
}

var (
	refsOnce      sync.Once
	refsSingleton *refsModule
	refsInitErr   error
)

func registerRefsModule() (*refsModule, error) {
	refsOnce.Do(func() {
		refsSingleton = &refsModule{dbs: make(map[string]*sql.DB)}
		if err := vtab.RegisterModule(nil, "clps_token_refs", refsSingleton); err != nil {
			refsInitErr = fmt.Errorf("%w: register clps_token_refs module: %v", clperr.ErrIoFailure, err)
			refsSingleton = nil
		}
	})
	return refsSingleton, refsInitErr
}

func (m *refsModule) RegisterDB(id string, db *sql.DB) {
	m.mu.Lock()
	m.dbs[id] = db
	m.mu.Unlock()
}

func (m *refsModule) UnregisterDB(id string) {
	m.mu.Lock()
	delete(m.dbs, id)
	m.mu.Unlock()
}

func (m *refsModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("clps_token_refs: missing db path argument (expected USING clps_token_refs(path))")
	}
	id := args[3]

	m.mu.RLock()
	db, ok := m.dbs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("clps_token_refs: unknown db %q", id)
	}

	if err := ctx.Declare("CREATE TABLE x(token TEXT, archive_id TEXT)"); err != nil {
		return nil, err
	}
	return &refsTable{db: db}, nil
}

func (m *refsModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type refsTable struct {
	db *sql.DB
}

func (t *refsTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 {
			continue
		}
		if c.Op == vtab.OpEQ {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		}
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *refsTable) Open() (vtab.Cursor, error) { return &refsCursor{table: t}, nil }
func (t *refsTable) Disconnect() error          { return nil }
func (t *refsTable) Destroy() error             { return nil }

type refsRow struct {
	token     string
	archiveID string
}

type refsCursor struct {
	table *refsTable
	rows  []refsRow
	pos   int
}

func (c *refsCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	db := c.table.db
	if db == nil {
		return nil
	}

	if idxNum == 1 {
		token, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.loadToken(db, token)
	}
	return c.loadAll(db)
}

func (c *refsCursor) loadToken(db *sql.DB, token string) error {
	var blob []byte
	err := db.QueryRow("SELECT bitmap FROM token_refs WHERE token = ?", token).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clps_token_refs: query token %q: %w", token, err)
	}
	return c.expandBitmap(db, token, blob)
}

func (c *refsCursor) loadAll(db *sql.DB) error {
	type entry struct {
		token string
		blob  []byte
	}

	rows, err := db.Query("SELECT token, bitmap FROM token_refs")
	if err != nil {
		return fmt.Errorf("clps_token_refs: scan token_refs: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.token, &e.blob); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("clps_token_refs: scan token_refs rows: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		if err := c.expandBitmap(db, e.token, e.blob); err != nil {
			return err
		}
	}
	return nil
}

// expandBitmap deserializes a roaring bitmap of archive_num values and
// resolves each to its archive_id.
func (c *refsCursor) expandBitmap(db *sql.DB, token string, blob []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return fmt.Errorf("clps_token_refs: unmarshal bitmap for %q: %w", token, err)
	}

	var nums []uint32
	it := rb.Iterator()
	for it.HasNext() {
		nums = append(nums, it.Next())
	}
	if len(nums) == 0 {
		return nil
	}

	args := make([]any, len(nums))
	placeholders := make([]string, len(nums))
	for i, n := range nums {
		args[i] = n
		placeholders[i] = "?"
	}

	query := fmt.Sprintf("SELECT archive_id FROM archives WHERE archive_num IN (%s)", strings.Join(placeholders, ","))
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("clps_token_refs: resolve archive_num: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var archiveID string
		if err := rows.Scan(&archiveID); err != nil {
			continue
		}
		c.rows = append(c.rows, refsRow{token: token, archiveID: archiveID})
	}
	return rows.Err()
}

func (c *refsCursor) Next() error { c.pos++; return nil }
func (c *refsCursor) Eof() bool   { return c.pos >= len(c.rows) }

func (c *refsCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].token, nil
	case 1:
		return c.rows[c.pos].archiveID, nil
	default:
		return nil, nil
	}
}

func (c *refsCursor) Rowid() (int64, error) { return int64(c.pos), nil }
func (c *refsCursor) Close() error          { c.rows = nil; return nil }
