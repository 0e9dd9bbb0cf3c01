package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simdoc/simdoc/export"
	"github.com/simdoc/simdoc/pdftab"
	"github.com/simdoc/simdoc/pipeline"
	"github.com/simdoc/simdoc/sim"
	"github.com/simdoc/simdoc/store"
	"github.com/simdoc/simdoc/validate"
)

var (
	errDocNotFound  = errors.New("document not found")
	errNotProcessed = errors.New("document not processed yet")
	errNeedsOCR     = errors.New("document has no extractable text layer, OCR required")
)

// document tracks one uploaded PDF through its lifecycle.
type document struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	Standard   string    `json:"standard,omitempty"`
	Edition    string    `json:"edition,omitempty"`
	Status     string    `json:"status"` // uploaded | processed
	StoreID    string    `json:"store_id,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`

	path   string
	model  *sim.Model
	report sim.Report
}

type service struct {
	cfg    *Config
	st     *store.Store
	logger *slog.Logger

	mu   sync.Mutex
	docs map[string]*document
}

func newService(cfg *Config, st *store.Store, logger *slog.Logger) *service {
	return &service{
		cfg:    cfg,
		st:     st,
		logger: logger,
		docs:   make(map[string]*document),
	}
}

// Upload saves the PDF body under data_dir/uploads and registers it.
func (s *service) Upload(fileName string, r io.Reader) (*document, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.cfg.DataDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	path := filepath.Join(dir, id+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	doc := &document{
		ID:         id,
		FileName:   fileName,
		Status:     "uploaded",
		UploadedAt: time.Now().UTC(),
		path:       path,
	}
	s.mu.Lock()
	s.docs[id] = doc
	s.mu.Unlock()

	s.logger.Info("document uploaded", "doc_id", id, "file", fileName)
	return doc, nil
}

type processRequest struct {
	Standard     string `json:"standard"`
	Edition      string `json:"edition"`
	PriorEdition string `json:"prior_edition"`
}

// Process runs the extraction pipeline on an uploaded document and
// imports the resulting model into the store.
func (s *service) Process(ctx context.Context, id string, req processRequest) (*document, error) {
	doc := s.get(id)
	if doc == nil {
		return nil, errDocNotFound
	}

	pdoc, err := pdftab.Open(doc.path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	q, err := pdoc.Quality()
	if err != nil {
		return nil, fmt.Errorf("quality probe: %w", err)
	}
	if q.NeedsOCR() {
		return nil, fmt.Errorf("%w (chars/page=%.1f, printable=%.2f)",
			errNeedsOCR, q.CharsPerPage, q.PrintableRatio)
	}

	standard := req.Standard
	if standard == "" {
		standard = s.cfg.Standard
	}
	edition := req.Edition
	if edition == "" {
		edition = s.cfg.Edition
	}

	var prior *sim.Model
	if req.PriorEdition != "" {
		priorID, err := s.st.FindLatest(ctx, standard, req.PriorEdition)
		switch {
		case err == nil:
			if prior, err = s.st.LoadModel(ctx, priorID); err != nil {
				return nil, fmt.Errorf("load prior edition: %w", err)
			}
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("prior edition not in store, skipping diff",
				"standard", standard, "edition", req.PriorEdition)
		default:
			return nil, fmt.Errorf("find prior edition: %w", err)
		}
	}

	m, report, err := pipeline.Build(ctx, pdoc, pipeline.Config{
		Standard:            standard,
		Edition:             edition,
		TransportUnit:       sim.TransportUnit(s.cfg.TransportUnit),
		Source:              doc.FileName,
		Workers:             s.cfg.Workers,
		PageTimeout:         s.cfg.PageTimeout(),
		MinScore:            s.cfg.MinScore,
		ConfidenceThreshold: s.cfg.ConfidenceThreshold,
		Prior:               prior,
		Logger:              s.logger,
	})
	if err != nil {
		return nil, err
	}

	storeID, err := s.st.Import(ctx, m, report)
	if err != nil {
		return nil, fmt.Errorf("import model: %w", err)
	}

	s.mu.Lock()
	doc.Standard = standard
	doc.Edition = edition
	doc.Status = "processed"
	doc.StoreID = storeID
	doc.model = m
	doc.report = report
	s.mu.Unlock()

	s.logger.Info("document processed",
		"doc_id", id, "store_id", storeID,
		"messages", len(m.Messages), "fields", m.FieldCount(),
		"errors", len(report.Errors()), "warnings", len(report.Warnings()))
	return doc, nil
}

func (s *service) get(id string) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

// List returns all known documents, oldest first.
func (s *service) List() []*document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Model returns the extracted model of a processed document.
func (s *service) Model(id string) (*sim.Model, error) {
	doc := s.get(id)
	if doc == nil {
		return nil, errDocNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.model == nil {
		return nil, errNotProcessed
	}
	return doc.model, nil
}

// Report returns the validation report of a processed document.
func (s *service) Report(id string) (sim.Report, error) {
	doc := s.get(id)
	if doc == nil {
		return nil, errDocNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.model == nil {
		return nil, errNotProcessed
	}
	return doc.report, nil
}

// ImportModel schema-checks a serialized model, re-validates it, and
// imports it into the store.
func (s *service) ImportModel(ctx context.Context, data []byte) (string, sim.Report, error) {
	if err := sim.ValidateSerialized(data); err != nil {
		return "", nil, fmt.Errorf("schema check: %w", err)
	}
	m, err := sim.FromJSON(data)
	if err != nil {
		return "", nil, err
	}
	report, err := validate.Run(ctx, m, validate.Options{
		ConfidenceThreshold: s.cfg.ConfidenceThreshold,
	})
	if err != nil {
		return "", nil, err
	}
	storeID, err := s.st.Import(ctx, m, report)
	if err != nil {
		return "", nil, fmt.Errorf("import model: %w", err)
	}
	s.logger.Info("model imported", "store_id", storeID,
		"messages", len(m.Messages), "issues", len(report))
	return storeID, report, nil
}

// Export writes a processed document's model to disk in the requested
// format and returns the output path.
func (s *service) Export(id, format string) (string, error) {
	m, err := s.Model(id)
	if err != nil {
		return "", err
	}
	base := filepath.Join(s.cfg.DataDir, "exports", id)
	switch format {
	case "yaml":
		dir := filepath.Join(base, "yaml")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if err := export.WriteYAMLDir(dir, m); err != nil {
			return "", err
		}
		return dir, nil
	case "xlsx":
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", err
		}
		path := filepath.Join(base, "review.xlsx")
		if err := export.WriteXLSX(path, m); err != nil {
			return "", err
		}
		return path, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use yaml or xlsx)", format)
	}
}

// exportFormats lists what Export accepts, for discovery surfaces.
func exportFormats() []map[string]string {
	return []map[string]string{
		{"format": "yaml", "description": "One YAML file per message plus dictionary, enums and units files"},
		{"format": "xlsx", "description": "Review workbook with one sheet per message"},
	}
}
