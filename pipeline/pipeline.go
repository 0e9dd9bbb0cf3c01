// Package pipeline drives a document end to end: page text, section
// classification, concurrent per-page table arbitration, assembly into
// the semantic model, and validation. Assembly is single-writer; the
// only concurrency is the per-page extraction fan-out and the
// validation checkers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simdoc/simdoc/arbiter"
	"github.com/simdoc/simdoc/assemble"
	"github.com/simdoc/simdoc/extract"
	"github.com/simdoc/simdoc/normalize"
	"github.com/simdoc/simdoc/sections"
	"github.com/simdoc/simdoc/sim"
	"github.com/simdoc/simdoc/validate"
)

// Document is the page-oriented view the pipeline needs. pdftab
// provides the PDF-backed implementation; tests provide synthetic ones.
type Document interface {
	PageCount() int
	PageTexts() ([]extract.PageText, error)
	Grid() extract.Extractor
	Stream() extract.Extractor
}

// Config tunes one pipeline run. The zero value is usable.
type Config struct {
	Standard      string
	Edition       string
	TransportUnit sim.TransportUnit
	Source        string

	// Workers bounds the per-page extraction fan-out.
	Workers int
	// PageTimeout bounds one page's extraction; a page that exceeds it
	// becomes a coverage gap, not a failed run.
	PageTimeout time.Duration
	// MinScore gates table arbitration; zero uses the arbiter default.
	MinScore float64
	// ConfidenceThreshold feeds validation; zero uses its default.
	ConfidenceThreshold float64
	// ContainerBits sets segment rounding; zero picks by transport unit.
	ContainerBits int
	// Prior enables cross-edition drift validation.
	Prior *sim.Model

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.TransportUnit == "" {
		c.TransportUnit = sim.TransportBit
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// pageResult is one page's arbitration outcome, written by exactly one
// worker and read only after the fan-out barrier.
type pageResult struct {
	winner  *extract.TableCandidate
	outcome arbiter.Outcome
	gap     *validate.Gap
}

// Build runs the whole pipeline. On cancellation it returns the
// context error and no model; a partially assembled model never
// escapes. An empty document yields an empty, valid model.
func Build(ctx context.Context, doc Document, cfg Config) (*sim.Model, sim.Report, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger

	pages, err := doc.PageTexts()
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: page text: %w", err)
	}
	secs := sections.Classify(pages)
	log.Info("document classified",
		"pages", len(pages),
		"sections", len(secs),
		"messages", len(secs.Messages()))

	results, err := arbitratePages(ctx, doc, cfg, secs)
	if err != nil {
		return nil, nil, err
	}

	in, skips, gaps := collect(cfg, pages, secs, results)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	model, err := assemble.Build(in)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: assemble: %w", err)
	}

	report, err := validate.Run(ctx, model, validate.Options{
		Prior:               cfg.Prior,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Skips:               skips,
		Gaps:                gaps,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: validate: %w", err)
	}

	log.Info("model built",
		"messages", len(model.Messages),
		"fields", model.FieldCount(),
		"errors", len(report.Errors()),
		"warnings", len(report.Warnings()))
	return model, report, nil
}

// arbitratePages fans one worker per page, bounded by cfg.Workers.
// Workers write disjoint slots; no other state is shared.
func arbitratePages(ctx context.Context, doc Document, cfg Config, secs sections.List) (map[int]*pageResult, error) {
	results := make(map[int]*pageResult, doc.PageCount())
	var wanted []int
	for page := 1; page <= doc.PageCount(); page++ {
		if len(secs.ForPage(page)) == 0 {
			continue
		}
		results[page] = &pageResult{}
		wanted = append(wanted, page)
	}

	grid, stream := doc.Grid(), doc.Stream()
	opts := arbiter.Options{MinScore: cfg.MinScore}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, page := range wanted {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, cfg.PageTimeout)
			defer cancel()

			res := results[page]
			region := extract.PageRegion{Page: page}

			a, errA := grid.Extract(pctx, region)
			b, errB := stream.Extract(pctx, region)
			if errA != nil || errB != nil {
				if pctx.Err() != nil && gctx.Err() == nil {
					res.gap = &validate.Gap{Page: page, Reason: "extraction timed out"}
					return nil
				}
				if errA != nil {
					return fmt.Errorf("pipeline: page %d grid extraction: %w", page, errA)
				}
				return fmt.Errorf("pipeline: page %d stream extraction: %w", page, errB)
			}

			winner, outcome := arbiter.Select(a, b, opts)
			res.winner = winner
			res.outcome = outcome
			if winner == nil && (a != nil || b != nil) {
				res.gap = &validate.Gap{Page: page, Reason: "both table candidates rejected"}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// collect walks sections in document order and folds each page's
// winning table into the assembly input. This is the single writer.
func collect(cfg Config, pages []extract.PageText, secs sections.List, results map[int]*pageResult) (*assemble.Input, []validate.SkipRecord, []validate.Gap) {
	in := &assemble.Input{
		Standard:      cfg.Standard,
		Edition:       cfg.Edition,
		TransportUnit: cfg.TransportUnit,
		ContainerBits: cfg.ContainerBits,
		Metadata: sim.Metadata{
			Source:    cfg.Source,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			PageCount: len(pages),
		},
	}
	var skips []validate.SkipRecord
	var gaps []validate.Gap

	// When sections share a page, its table belongs to the one that
	// starts last: headings cut mid-page and tables follow them.
	owner := map[int]int{}
	for si, sec := range secs {
		for page := sec.Start.Page; page <= sec.End.Page; page++ {
			owner[page] = si
		}
	}

	seenGap := map[int]bool{}
	for si, sec := range secs {
		switch sec.Kind {
		case sections.KindMessage:
			mi := assemble.MessageInput{Label: sec.Label, Title: sec.Title}
			for page := sec.Start.Page; page <= sec.End.Page; page++ {
				res := results[page]
				if res == nil || owner[page] != si {
					continue
				}
				if res.gap != nil && !seenGap[page] {
					gaps = append(gaps, *res.gap)
					seenGap[page] = true
				}
				if res.winner == nil {
					continue
				}
				norm := normalize.Table(res.winner, res.outcome.WinnerScore)
				mi.Rows = append(mi.Rows, norm.Rows...)
				for _, s := range norm.Skips {
					skips = append(skips, validate.SkipRecord{Message: sec.Label, Page: page, Skip: s})
				}
			}
			in.Messages = append(in.Messages, mi)
		case sections.KindDictionary:
			di := assemble.DictInput{Label: sec.Label, Title: sec.Title}
			for page := sec.Start.Page; page <= sec.End.Page; page++ {
				res := results[page]
				if res == nil || owner[page] != si {
					continue
				}
				if res.gap != nil && !seenGap[page] {
					gaps = append(gaps, *res.gap)
					seenGap[page] = true
				}
				if res.winner == nil {
					continue
				}
				di.Tables = append(di.Tables, normalize.FoldCells(res.winner.Cells))
			}
			in.Dictionary = append(in.Dictionary, di)
		}
	}
	return in, skips, gaps
}
