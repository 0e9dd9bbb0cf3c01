package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/simdoc/simdoc/kit"
	"github.com/simdoc/simdoc/sim"
)

// registerMCP registers all simdoc tools on an MCP server.
func registerMCP(srv *mcp.Server, svc *service) {
	registerProcess(srv, svc)
	registerValidate(srv, svc)
	registerFormats(srv, svc)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func mcpCtx(ctx context.Context) context.Context {
	return kit.WithTransport(ctx, "mcp_stdio")
}

func registerProcess(srv *mcp.Server, svc *service) {
	type req struct {
		Path         string `json:"path"`
		Standard     string `json:"standard"`
		Edition      string `json:"edition"`
		PriorEdition string `json:"prior_edition"`
	}

	tool := &mcp.Tool{
		Name:        "simdoc_process",
		Description: "Extract a tabular standard PDF into a validated semantic model and store it",
		InputSchema: inputSchema(map[string]any{
			"path":          map[string]any{"type": "string", "description": "Server-local path to the PDF"},
			"standard":      map[string]any{"type": "string", "description": "Standard designator, e.g. MIL-STD-6016"},
			"edition":       map[string]any{"type": "string", "description": "Edition of the document"},
			"prior_edition": map[string]any{"type": "string", "description": "Earlier edition to diff against, if stored"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		f, err := os.Open(p.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p.Path, err)
		}
		defer f.Close()
		doc, err := svc.Upload(filepath.Base(p.Path), f)
		if err != nil {
			return nil, err
		}
		doc, err = svc.Process(ctx, doc.ID, processRequest{
			Standard:     p.Standard,
			Edition:      p.Edition,
			PriorEdition: p.PriorEdition,
		})
		if err != nil {
			return nil, err
		}
		report, _ := svc.Report(doc.ID)
		m, _ := svc.Model(doc.ID)
		return map[string]any{
			"doc_id":   doc.ID,
			"store_id": doc.StoreID,
			"messages": len(m.Messages),
			"fields":   m.FieldCount(),
			"errors":   len(report.Errors()),
			"warnings": len(report.Warnings()),
		}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func registerValidate(srv *mcp.Server, svc *service) {
	type req struct {
		Model json.RawMessage `json:"model"`
	}

	tool := &mcp.Tool{
		Name:        "simdoc_validate",
		Description: "Schema-check and validate a serialized semantic model, returning the issue report",
		InputSchema: inputSchema(map[string]any{
			"model": map[string]any{"type": "object", "description": "Serialized semantic model (JSON)"},
		}, []string{"model"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		storeID, report, err := svc.ImportModel(ctx, p.Model)
		if err != nil {
			return nil, err
		}
		if report == nil {
			report = sim.Report{}
		}
		return map[string]any{"store_id": storeID, "report": report}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p, EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func registerFormats(srv *mcp.Server, _ *service) {
	tool := &mcp.Tool{
		Name:        "simdoc_formats",
		Description: "List supported export formats",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return exportFormats(), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{EnrichCtx: mcpCtx}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
