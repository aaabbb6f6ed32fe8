package catalog_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/clpstructured/clps/internal/catalog"
	"github.com/clpstructured/clps/internal/orchestrator"
)

func TestBuildCatalogIndexesArchivesAndTokens(t *testing.T) {
	fs := memfs.New()
	run := orchestrator.New(fs, "/archives", nil, 3, 1<<20)

	input := strings.Join([]string{
		`{"service":"checkout","level":"info"}`,
		`{"service":"checkout","level":"error"}`,
		`{"service":"billing","level":"info"}`,
	}, "\n")
	require.NoError(t, run.IngestReader(strings.NewReader(input)))
	stats, err := run.Close()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "catalog.sqlite")
	cat, err := catalog.Build(fs, "/archives", dbPath, stats.ArchiveIDs)
	require.NoError(t, err)
	defer func() { _ = cat.Close(dbPath) }()

	var rowCount int64
	require.NoError(t, cat.DB().QueryRow("SELECT SUM(row_count) FROM archives").Scan(&rowCount))
	require.EqualValues(t, 3, rowCount)

	var schemaRows int
	require.NoError(t, cat.DB().QueryRow("SELECT COUNT(*) FROM schemas").Scan(&schemaRows))
	require.Greater(t, schemaRows, 0)

	rows, err := cat.DB().Query("SELECT archive_id FROM clps_refs WHERE token = ?", "checkout")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var archiveIDs []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		archiveIDs = append(archiveIDs, id)
	}
	require.NoError(t, rows.Err())
	require.Len(t, archiveIDs, 1)
}
