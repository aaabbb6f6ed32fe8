package orchestrator_test

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/clpstructured/clps/internal/archive"
	"github.com/clpstructured/clps/internal/orchestrator"
)

func TestRunIngestsAndReadsBack(t *testing.T) {
	fs := memfs.New()
	run := orchestrator.New(fs, "/archives", nil, 3, 1<<20)

	input := strings.Join([]string{
		`{"a":1,"b":"hello world"}`,
		`{"a":2,"b":"hello again"}`,
		`not json at all`,
		`{"a":3,"b":"hello world"}`,
	}, "\n")

	require.NoError(t, run.IngestReader(strings.NewReader(input)))
	stats, err := run.Close()
	require.NoError(t, err)
	require.Len(t, stats.ArchiveIDs, 1)
	require.EqualValues(t, 4, stats.RecordsRead)
	require.EqualValues(t, 3, stats.RecordsOK)

	rd, err := archive.OpenReader(fs, "/archives", stats.ArchiveIDs[0])
	require.NoError(t, err)
	require.EqualValues(t, 3, rd.Metadata().RowCount)

	var rows []map[string]any
	pairs, err := rd.Schemas()
	require.NoError(t, err)
	for _, pair := range pairs {
		got, err := rd.ReadSchema(pair.SchemaID, nil)
		require.NoError(t, err)
		rows = append(rows, got...)
	}
	require.Len(t, rows, 3)
}

func TestRunSplitsWhenSizeThresholdCrossed(t *testing.T) {
	fs := memfs.New()
	// A tiny threshold forces a rotation after the first record.
	run := orchestrator.New(fs, "/archives", nil, 1, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, run.IngestReader(strings.NewReader(`{"msg":"a fairly long line of text here"}`)))
	}
	stats, err := run.Close()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stats.ArchiveIDs), 2)

	var total int64
	for _, id := range stats.ArchiveIDs {
		rd, err := archive.OpenReader(fs, "/archives", id)
		require.NoError(t, err)
		total += rd.Metadata().RowCount
	}
	require.EqualValues(t, 3, total)
}

// A node that was a constant in one archive and later diverges in a
// later archive (both archives sharing the same process-global schema
// tree) must not let the later archive's real, varying values get
// misread as the earlier archive's stale folded constant.
func TestRunConstantFoldDoesNotLeakAcrossArchives(t *testing.T) {
	fs := memfs.New()
	run := orchestrator.New(fs, "/archives", nil, 1, 1)

	require.NoError(t, run.IngestReader(strings.NewReader(`{"env":"only"}`)))
	require.NoError(t, run.IngestReader(strings.NewReader(`{"env":"alpha"}`)))
	require.NoError(t, run.IngestReader(strings.NewReader(`{"env":"beta"}`)))

	stats, err := run.Close()
	require.NoError(t, err)
	require.Len(t, stats.ArchiveIDs, 3)

	var values []string
	for _, id := range stats.ArchiveIDs {
		rd, err := archive.OpenReader(fs, "/archives", id)
		require.NoError(t, err)
		pairs, err := rd.Schemas()
		require.NoError(t, err)
		for _, pair := range pairs {
			rows, err := rd.ReadSchema(pair.SchemaID, nil)
			require.NoError(t, err)
			for _, r := range rows {
				env, _ := r["env"].(string)
				values = append(values, env)
			}
		}
	}
	require.ElementsMatch(t, []string{"only", "alpha", "beta"}, values)
}
