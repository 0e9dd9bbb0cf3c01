// Package extract defines the boundary between the pipeline and the two
// independent table extractors. The pipeline never depends on how a
// candidate was produced, only on this contract.
package extract

import (
	"context"
	"strings"
)

// PageRegion identifies a rectangular area of one page. Coordinates are in
// page units with origin at the lower left; a zero rectangle means the
// whole page.
type PageRegion struct {
	Page int     `json:"page"`
	X0   float64 `json:"x0,omitempty"`
	Y0   float64 `json:"y0,omitempty"`
	X1   float64 `json:"x1,omitempty"`
	Y1   float64 `json:"y1,omitempty"`
}

// TableCandidate is one raw table extraction: a grid of text cells tagged
// with the method that produced it. Candidates are ephemeral; only the
// arbitration winner survives past selection.
type TableCandidate struct {
	Region PageRegion `json:"region"`
	Method string     `json:"method"`
	Cells  [][]string `json:"cells"`
}

// Rows returns the number of rows in the grid.
func (c *TableCandidate) Rows() int { return len(c.Cells) }

// NonEmptyCells counts cells with non-blank content. Used as the
// density tie-break during arbitration.
func (c *TableCandidate) NonEmptyCells() int {
	n := 0
	for _, row := range c.Cells {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				n++
			}
		}
	}
	return n
}

// ModalColumns returns the most common row width across the grid.
// Zero for an empty grid.
func (c *TableCandidate) ModalColumns() int {
	if len(c.Cells) == 0 {
		return 0
	}
	counts := map[int]int{}
	for _, row := range c.Cells {
		counts[len(row)]++
	}
	mode, best := 0, 0
	for width, n := range counts {
		if n > best || (n == best && width > mode) {
			mode, best = width, n
		}
	}
	return mode
}

// PageText is the plain text of one page, input to the section classifier.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Extractor produces at most one table candidate for a page region.
// Returning (nil, nil) means the extractor found nothing there, which is
// not an error.
type Extractor interface {
	Extract(ctx context.Context, region PageRegion) (*TableCandidate, error)
	Method() string
}
