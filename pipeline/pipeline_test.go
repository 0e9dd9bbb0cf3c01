package pipeline

import (
	"context"
	"testing"

	"github.com/simdoc/simdoc/extract"
	"github.com/simdoc/simdoc/sim"
)

// fakeDoc serves synthetic pages and per-method table candidates.
type fakeDoc struct {
	texts  []extract.PageText
	grid   map[int][][]string
	stream map[int][][]string
}

func (d *fakeDoc) PageCount() int { return len(d.texts) }

func (d *fakeDoc) PageTexts() ([]extract.PageText, error) { return d.texts, nil }

func (d *fakeDoc) Grid() extract.Extractor {
	return &fakeExtractor{method: "grid", tables: d.grid}
}

func (d *fakeDoc) Stream() extract.Extractor {
	return &fakeExtractor{method: "stream", tables: d.stream}
}

type fakeExtractor struct {
	method string
	tables map[int][][]string
}

func (e *fakeExtractor) Method() string { return e.method }

func (e *fakeExtractor) Extract(ctx context.Context, region extract.PageRegion) (*extract.TableCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, ok := e.tables[region.Page]
	if !ok {
		return nil, nil
	}
	return &extract.TableCandidate{Region: region, Method: e.method, Cells: cells}, nil
}

var fieldCells = [][]string{
	{"Field Name", "Bits", "Units", "Description"},
	{"Altitude", "0-15", "ft", "Geometric altitude"},
	{"Track Status", "16-18", "", "0 = Pending\n1 = Active"},
}

var duiCells = [][]string{
	{"DUI", "Name"},
	{"1", "Altitude, Estimated"},
}

func standardDoc() *fakeDoc {
	return &fakeDoc{
		texts: []extract.PageText{
			{Page: 1, Text: "J3.2 Air Track\nField Name Bits Units Description"},
			{Page: 2, Text: "DFI 277 Altitude\nDUI Name"},
		},
		grid:   map[int][][]string{1: fieldCells, 2: duiCells},
		stream: map[int][][]string{1: fieldCells, 2: duiCells},
	}
}

func TestBuildHappyPath(t *testing.T) {
	model, report, err := Build(context.Background(), standardDoc(), Config{
		Standard: "MIL-STD-6016",
		Edition:  "B",
		Source:   "standard.pdf",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(model.Messages) != 1 || model.Messages[0].Label != "J3.2" {
		t.Fatalf("messages = %+v", model.Messages)
	}
	msg := model.Messages[0]
	if msg.Title != "Air Track" {
		t.Errorf("title = %q", msg.Title)
	}
	if got := len(msg.Segments); got != 1 {
		t.Fatalf("segments = %+v", msg.Segments)
	}
	if got := msg.Segments[0].BitLen; got != 70 {
		t.Errorf("bit_len = %d, want 70", got)
	}
	if got := len(msg.Segments[0].Fields); got != 2 {
		t.Errorf("fields = %+v", msg.Segments[0].Fields)
	}
	if len(model.Dictionary) != 2 {
		t.Errorf("dictionary = %+v", model.Dictionary)
	}
	if len(model.Enums) != 1 || model.Enums[0].Key != "track_status" {
		t.Errorf("enums = %+v", model.Enums)
	}
	if report.HasErrors() {
		t.Errorf("clean document produced errors: %+v", report.Errors())
	}
	if model.Metadata.Source != "standard.pdf" || model.Metadata.PageCount != 2 {
		t.Errorf("metadata = %+v", model.Metadata)
	}
}

func TestBuildEmptyDocument(t *testing.T) {
	model, report, err := Build(context.Background(), &fakeDoc{}, Config{Standard: "MIL-STD-6016"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(model.Messages) != 0 {
		t.Errorf("empty document produced messages: %+v", model.Messages)
	}
	if report.HasErrors() {
		t.Errorf("empty document produced errors: %+v", report)
	}
}

func TestBuildCanceledContext(t *testing.T) {
	// WHAT: Cancellation aborts the run; no partial model escapes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model, _, err := Build(ctx, standardDoc(), Config{Standard: "MIL-STD-6016"})
	if err == nil {
		t.Fatal("canceled context did not fail the run")
	}
	if model != nil {
		t.Errorf("canceled run returned a model: %+v", model)
	}
}

func TestBuildArbitrationPrefersRecognizableHeader(t *testing.T) {
	doc := standardDoc()
	doc.grid[1] = [][]string{ // grid found page furniture instead
		{"Figure 3-1"},
		{"see previous page"},
	}
	model, _, err := Build(context.Background(), doc, Config{Standard: "MIL-STD-6016"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(model.Messages[0].Segments); got != 1 {
		t.Fatalf("stream candidate not selected: %+v", model.Messages[0])
	}
	if got := len(model.Messages[0].Segments[0].Fields); got != 2 {
		t.Errorf("fields = %+v", model.Messages[0].Segments[0].Fields)
	}
}

func TestBuildCoverageGapWhenBothRejected(t *testing.T) {
	junk := [][]string{{"Figure 3-1"}, {"see previous page"}}
	doc := standardDoc()
	doc.grid[1], doc.stream[1] = junk, junk

	model, report, err := Build(context.Background(), doc, Config{Standard: "MIL-STD-6016"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := model.Messages[0].FieldCount(); got != 0 {
		t.Fatalf("junk page produced %d fields", got)
	}
	if !hasRule(report, "SD-COV-001") {
		t.Errorf("no coverage issue in %+v", report)
	}
}

func TestBuildRowSkipSurfaces(t *testing.T) {
	doc := standardDoc()
	doc.grid[1] = [][]string{
		{"Field Name", "Bits", "Units", "Description"},
		{"Altitude", "N/A", "ft", ""},
		{"Heading", "0-8", "deg", ""},
	}
	doc.stream[1] = doc.grid[1]

	model, report, err := Build(context.Background(), doc, Config{Standard: "MIL-STD-6016"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := model.Messages[0].FieldCount(); got != 1 {
		t.Fatalf("fields = %d, want lone Heading", got)
	}
	if !hasRule(report, "SD-ROW-001") {
		t.Errorf("skipped row not reported: %+v", report)
	}
}

func hasRule(r sim.Report, rule string) bool {
	for _, i := range r {
		if i.RuleID == rule {
			return true
		}
	}
	return false
}
