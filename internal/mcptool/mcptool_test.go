package mcptool_test

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/clpstructured/clps/internal/mcptool"
	"github.com/clpstructured/clps/internal/orchestrator"
)

func TestSearchFiltersByJSONPath(t *testing.T) {
	fs := memfs.New()
	run := orchestrator.New(fs, "/archives", nil, 3, 1<<20)

	input := strings.Join([]string{
		`{"level":"info","msg":"startup complete"}`,
		`{"level":"error","msg":"disk full"}`,
	}, "\n")
	require.NoError(t, run.IngestReader(strings.NewReader(input)))
	stats, err := run.Close()
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"jsonpath": "$.level[?(@ == 'error')]"}

	result, err := mcptool.Search(fs, "/archives", stats.ArchiveIDs, req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "disk full")
	require.NotContains(t, text.Text, "startup complete")
}
