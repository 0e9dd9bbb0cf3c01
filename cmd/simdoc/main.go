package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/simdoc/simdoc/kit"
	"github.com/simdoc/simdoc/sim"
	"github.com/simdoc/simdoc/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfig(*configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}
	cfg.Listen = env("LISTEN", cfg.Listen)
	cfg.DataDir = env("DATA_DIR", cfg.DataDir)
	cfg.DBPath = env("DB_PATH", cfg.DBPath)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.MCPTransport = env("MCP_TRANSPORT", cfg.MCPTransport)
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	svc := newService(cfg, st, logger)

	// Optional MCP over stdio.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "simdoc",
			Version: "1.0.0",
		}, nil)
		registerMCP(mcpSrv, svc)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "listen", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func newRouter(svc *service) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, svc.cfg.MaxFileBytes())

		var (
			name string
			body io.Reader
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				writeError(w, 400, err)
				return
			}
			defer f.Close()
			name, body = hdr.Filename, f
		} else {
			name, body = r.URL.Query().Get("name"), r.Body
			if name == "" {
				name = "upload.pdf"
			}
		}

		doc, err := svc.Upload(name, body)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 201, doc)
	})

	r.Get("/api/documents", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, svc.List())
	})

	r.Post("/api/documents/{docID}/process", func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
		}
		doc, err := svc.Process(r.Context(), chi.URLParam(r, "docID"), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, doc)
	})

	r.Get("/api/documents/{docID}/model", func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.Model(chi.URLParam(r, "docID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "yaml" {
			data, err := sim.ToYAML(m)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			w.WriteHeader(200)
			w.Write(data)
			return
		}
		writeJSON(w, 200, m)
	})

	r.Get("/api/documents/{docID}/report", func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Report(chi.URLParam(r, "docID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, report)
	})

	r.Post("/api/documents/{docID}/export", func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "yaml"
		}
		path, err := svc.Export(chi.URLParam(r, "docID"), format)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"format": format, "path": path})
	})

	r.Get("/api/formats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, exportFormats())
	})

	r.Post("/api/import", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, svc.cfg.MaxFileBytes()))
		if err != nil {
			writeError(w, 400, err)
			return
		}
		storeID, report, err := svc.ImportModel(r.Context(), data)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 201, map[string]any{"store_id": storeID, "issues": len(report)})
	})

	return r
}

// requestID stamps each request with an ID for log correlation,
// echoing it back in the response headers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := kit.WithRequestID(r.Context(), id)
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errDocNotFound):
		writeError(w, 404, err)
	case errors.Is(err, errNotProcessed):
		writeError(w, 409, err)
	case errors.Is(err, errNeedsOCR):
		writeError(w, 422, err)
	case isBadInput(err):
		writeError(w, 400, err)
	default:
		writeError(w, 500, err)
	}
}

// isBadInput classifies schema and format errors as client mistakes.
func isBadInput(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "schema check") ||
		strings.Contains(msg, "unsupported export format")
}
