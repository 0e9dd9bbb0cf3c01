// Package pdftab reads a PDF with pdfcpu and offers two independent
// table extractors over its page content: one driven by ruled lines,
// one by text position clustering. Both serve the extract.Extractor
// contract so the pipeline can arbitrate between them.
package pdftab

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/simdoc/simdoc/extract"
)

// Document is an open PDF. Page content is parsed lazily and cached;
// the cache is safe for the pipeline's concurrent page workers.
type Document struct {
	ctx *model.Context

	mu    sync.Mutex
	pages map[int]*pageContent
}

type pageContent struct {
	runs  []TextRun
	rules []Line
}

// Open reads and validates a PDF from disk.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read reads and validates a PDF from a stream.
func Read(r io.ReadSeeker) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(r, conf)
	if err != nil {
		return nil, fmt.Errorf("pdftab: pdfcpu read: %w", err)
	}
	return &Document{ctx: ctx, pages: map[int]*pageContent{}}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.ctx.PageCount }

func (d *Document) page(pageNr int) (*pageContent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pc, ok := d.pages[pageNr]; ok {
		return pc, nil
	}
	if pageNr < 1 || pageNr > d.ctx.PageCount {
		return nil, fmt.Errorf("pdftab: page %d out of range 1..%d", pageNr, d.ctx.PageCount)
	}
	pc := &pageContent{}
	r, err := pdfcpu.ExtractPageContent(d.ctx, pageNr)
	if err == nil && r != nil {
		if data, err := io.ReadAll(r); err == nil {
			pc.runs, pc.rules = parseContent(data)
		}
	}
	d.pages[pageNr] = pc
	return pc, nil
}

// PageText returns the plain text of one page, one visual row per line.
func (d *Document) PageText(pageNr int) (extract.PageText, error) {
	pc, err := d.page(pageNr)
	if err != nil {
		return extract.PageText{}, err
	}
	return extract.PageText{Page: pageNr, Text: pageTextOf(pc.runs)}, nil
}

// PageTexts extracts every page in order.
func (d *Document) PageTexts() ([]extract.PageText, error) {
	out := make([]extract.PageText, 0, d.ctx.PageCount)
	for p := 1; p <= d.ctx.PageCount; p++ {
		pt, err := d.PageText(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// HasImages reports whether the PDF carries image XObjects, the usual
// sign of a scanned document that text extraction cannot serve.
func (d *Document) HasImages() bool {
	if d.ctx.Optimize != nil {
		for p := 1; p <= d.ctx.PageCount; p++ {
			if len(pdfcpu.ImageObjNrs(d.ctx, p)) > 0 {
				return true
			}
		}
	}
	for _, entry := range d.ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// Grid returns the ruled-line extractor.
func (d *Document) Grid() extract.Extractor { return &gridExtractor{doc: d} }

// Stream returns the position-clustering extractor.
func (d *Document) Stream() extract.Extractor { return &streamExtractor{doc: d} }

type gridExtractor struct{ doc *Document }

func (e *gridExtractor) Method() string { return "grid" }

func (e *gridExtractor) Extract(ctx context.Context, region extract.PageRegion) (*extract.TableCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pc, err := e.doc.page(region.Page)
	if err != nil {
		return nil, err
	}
	runs, rules := clipRuns(pc.runs, region), clipRules(pc.rules, region)
	cells := tableFromRules(runs, rules)
	if cells == nil {
		return nil, nil
	}
	return &extract.TableCandidate{Region: region, Method: e.Method(), Cells: cells}, nil
}

type streamExtractor struct{ doc *Document }

func (e *streamExtractor) Method() string { return "stream" }

func (e *streamExtractor) Extract(ctx context.Context, region extract.PageRegion) (*extract.TableCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pc, err := e.doc.page(region.Page)
	if err != nil {
		return nil, err
	}
	cells := tableFromRuns(clipRuns(pc.runs, region))
	if cells == nil {
		return nil, nil
	}
	return &extract.TableCandidate{Region: region, Method: e.Method(), Cells: cells}, nil
}

func regionBounded(r extract.PageRegion) bool {
	return r.X1 > r.X0 || r.Y1 > r.Y0
}

func clipRuns(runs []TextRun, region extract.PageRegion) []TextRun {
	if !regionBounded(region) {
		return runs
	}
	var out []TextRun
	for _, r := range runs {
		if r.X >= region.X0 && r.X <= region.X1 && r.Y >= region.Y0 && r.Y <= region.Y1 {
			out = append(out, r)
		}
	}
	return out
}

func clipRules(rules []Line, region extract.PageRegion) []Line {
	if !regionBounded(region) {
		return rules
	}
	var out []Line
	for _, l := range rules {
		if l.X0 >= region.X0-ruleTol && l.X1 <= region.X1+ruleTol &&
			l.Y0 >= region.Y0-ruleTol && l.Y1 <= region.Y1+ruleTol {
			out = append(out, l)
		}
	}
	return out
}
