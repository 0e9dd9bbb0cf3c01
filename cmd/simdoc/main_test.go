package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/simdoc/simdoc/dbopen"
	"github.com/simdoc/simdoc/store"
)

func testService(t *testing.T) *service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newService(cfg, st, logger)
}

func testServer(t *testing.T) (*httptest.Server, *service) {
	t.Helper()
	svc := testService(t)
	srv := httptest.NewServer(newRouter(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

const sampleModelJSON = `{
	"standard": "MIL-STD-6016",
	"edition": "B",
	"transport_unit": "bit",
	"messages": [{
		"label": "J3.2",
		"title": "Air Track",
		"segments": [{
			"type": "Initial",
			"seg_idx": 0,
			"bit_len": 70,
			"fields": [
				{"name": "Altitude", "bits": [0, 15], "encoding": "integer", "units": "ft", "confidence": 0.9},
				{"name": "Track Status", "bits": [16, 18], "encoding": "enum", "confidence": 0.85}
			]
		}]
	}],
	"metadata": {"source": "standard.pdf", "created_at": "2026-08-23T10:00:00Z", "page_count": 42}
}`

// --- Config ---

func TestConfigDefaultsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad transport unit", func(c *Config) { c.TransportUnit = "word" }},
		{"min_score out of range", func(c *Config) { c.MinScore = 1.5 }},
		{"confidence out of range", func(c *Config) { c.ConfidenceThreshold = -0.1 }},
		{"bad mcp transport", func(c *Config) { c.MCPTransport = "quic" }},
		{"missing db path", func(c *Config) { c.DBPath = "" }},
		{"zero max file", func(c *Config) { c.MaxFileMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen: \":9099\"\nworkers: 8\nconfidence_threshold: 0.8\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9099" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.ConfidenceThreshold != 0.8 {
		t.Errorf("confidence_threshold = %v", cfg.ConfidenceThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Standard != "MIL-STD-6016" {
		t.Errorf("standard = %q", cfg.Standard)
	}
}

// --- HTTP surface ---

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if id := resp.Header.Get("X-Request-ID"); id == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestUploadAndList(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/api/documents?name=link16.pdf", "application/pdf",
		strings.NewReader("%PDF-1.7 fake"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var doc struct {
		ID       string `json:"id"`
		FileName string `json:"file_name"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.FileName != "link16.pdf" || doc.Status != "uploaded" {
		t.Fatalf("doc = %+v", doc)
	}

	listResp, err := http.Get(srv.URL + "/api/documents")
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	var list []json.RawMessage
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d", len(list))
	}
}

func TestModelBeforeProcess(t *testing.T) {
	srv, svc := testServer(t)

	doc, err := svc.Upload("x.pdf", strings.NewReader("fake"))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/documents/" + doc.ID + "/model")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 409 {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestUnknownDocument(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/documents/no-such-id/report")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/api/import", "application/json",
		strings.NewReader(sampleModelJSON))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		StoreID string `json:"store_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.StoreID == "" {
		t.Fatal("empty store_id")
	}
}

func TestImportRejectsBadPayload(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/api/import", "application/json",
		strings.NewReader(`{"standard": "MIL-STD-6016"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFormatsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/formats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var formats []map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&formats); err != nil {
		t.Fatal(err)
	}
	if len(formats) != 2 {
		t.Fatalf("formats = %v", formats)
	}
}

// --- MCP surface ---

var testMCPImpl = &mcp.Implementation{Name: "simdoc-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	svc := testService(t)
	srv := mcp.NewServer(testMCPImpl, nil)
	registerMCP(srv, svc)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Formats(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "simdoc_formats", map[string]any{})

	var formats []map[string]string
	if err := json.Unmarshal([]byte(text), &formats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range formats {
		seen[f["format"]] = true
	}
	if !seen["yaml"] || !seen["xlsx"] {
		t.Errorf("formats missing yaml/xlsx: %v", formats)
	}
}

func TestMCP_Validate(t *testing.T) {
	session := mcpSession(t)

	var model json.RawMessage = []byte(sampleModelJSON)
	text := mcpCallTool(t, session, "simdoc_validate", map[string]any{"model": model})

	var resp struct {
		StoreID string          `json:"store_id"`
		Report  json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.StoreID == "" {
		t.Error("empty store_id")
	}
}

func TestServiceExportUnknownFormat(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Export("missing", "csv"); err == nil {
		t.Fatal("expected error for unknown document")
	}
}
