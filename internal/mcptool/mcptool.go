// Package mcptool exposes a read-only MCP tool, search_archive, over a
// completed ingestion run's archives. Lib: github.com/mark3labs/mcp-go,
// a direct dependency in the teacher's go.mod with no surviving call site
// in the retrieval pack — this package is this repo's first concrete use
// of it, wired to the same "search subcommand" surface SPEC_FULL.md's
// domain stack names.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	billy "github.com/go-git/go-billy/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clpstructured/clps/internal/archive"
)

const defaultLimit = 100

// NewServer builds an MCP server exposing search_archive over every
// archive named in archiveIDs under baseDir.
func NewServer(fs billy.Filesystem, baseDir string, archiveIDs []string) *server.MCPServer {
	s := server.NewMCPServer("clps", "0.1.0")

	tool := mcp.NewTool("search_archive",
		mcp.WithDescription("Scan every archive in the run for records matching an optional JSONPath expression, returning matched documents."),
		mcp.WithString("jsonpath", mcp.Description("JSONPath expression a record must match, e.g. $.level; omit to match every record")),
		mcp.WithNumber("limit", mcp.Description("maximum number of matching records to return (default 100)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return Search(fs, baseDir, archiveIDs, req)
	})

	return s
}

// Search runs the search_archive tool's logic directly, without going
// through the MCP transport — exported so it can be exercised by tests and
// by the `clps search` CLI subcommand without spinning up a server.
func Search(fs billy.Filesystem, baseDir string, archiveIDs []string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := defaultLimit
	if v, ok := req.Params.Arguments["limit"]; ok {
		if n, ok := v.(float64); ok && n > 0 {
			limit = int(n)
		}
	}

	var pred archive.Predicate = archive.AcceptAll{}
	if v, ok := req.Params.Arguments["jsonpath"]; ok {
		expr, ok := v.(string)
		if ok && expr != "" {
			p, err := archive.NewJSONPathPredicate(expr)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid jsonpath: %v", err)), nil
			}
			pred = p
		}
	}

	var matched []map[string]any
	for _, id := range archiveIDs {
		if len(matched) >= limit {
			break
		}
		rd, err := archive.OpenReader(fs, baseDir, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open archive %s: %v", id, err)), nil
		}
		pairs, err := rd.Schemas()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list schemas in archive %s: %v", id, err)), nil
		}
		for _, pair := range pairs {
			if len(matched) >= limit {
				break
			}
			rows, err := rd.ReadSchema(pair.SchemaID, pred)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("read schema %d in archive %s: %v", pair.SchemaID, id, err)), nil
			}
			for _, row := range rows {
				matched = append(matched, row)
				if len(matched) >= limit {
					break
				}
			}
		}
	}

	body, err := json.Marshal(matched)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// Serve runs the MCP server over stdio, blocking until the client
// disconnects or the context (wired through server.ServeStdio's signal
// handling) is canceled.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
