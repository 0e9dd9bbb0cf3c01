package pdftab

import (
	"sort"
	"strings"
)

// Clustering tolerances in page units. Rows separated by less than
// rowTol are the same visual line; run X positions within colTol of a
// column center belong to that column.
const (
	rowTol  = 3.0
	colTol  = 8.0
	ruleTol = 2.0
)

// rowsOf groups runs into visual rows, top of page first, each row
// sorted left to right.
func rowsOf(runs []TextRun) [][]TextRun {
	if len(runs) == 0 {
		return nil
	}
	sorted := make([]TextRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if abs(sorted[i].Y-sorted[j].Y) > rowTol {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]TextRun
	var cur []TextRun
	curY := sorted[0].Y
	for _, r := range sorted {
		if abs(r.Y-curY) > rowTol {
			rows = append(rows, cur)
			cur = nil
		}
		if len(cur) == 0 {
			curY = r.Y
		}
		cur = append(cur, r)
	}
	rows = append(rows, cur)
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// columnCenters clusters the X positions of all runs into column
// centers. Two columns are distinct when their starts sit more than
// colTol apart.
func columnCenters(runs []TextRun) []float64 {
	if len(runs) == 0 {
		return nil
	}
	xs := make([]float64, 0, len(runs))
	for _, r := range runs {
		xs = append(xs, r.X)
	}
	sort.Float64s(xs)

	var centers []float64
	start := xs[0]
	sum, n := xs[0], 1
	for _, x := range xs[1:] {
		if x-start > colTol {
			centers = append(centers, sum/float64(n))
			start, sum, n = x, x, 1
			continue
		}
		sum += x
		n++
	}
	centers = append(centers, sum/float64(n))
	return centers
}

func nearestColumn(centers []float64, x float64) int {
	best, bestDist := 0, abs(centers[0]-x)
	for i, c := range centers[1:] {
		if d := abs(c - x); d < bestDist {
			best, bestDist = i+1, d
		}
	}
	return best
}

// tableFromRuns reconstructs a grid purely from text positions: rows by
// Y clustering, columns by X clustering. Returns nil when the layout is
// not plausibly a table.
func tableFromRuns(runs []TextRun) [][]string {
	rows := rowsOf(runs)
	centers := columnCenters(runs)
	if len(rows) < 2 || len(centers) < 2 {
		return nil
	}

	grid := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(centers))
		for _, r := range row {
			c := nearestColumn(centers, r.X)
			if cells[c] == "" {
				cells[c] = r.Text
			} else {
				cells[c] += " " + r.Text
			}
		}
		grid[i] = cells
	}
	return grid
}

// uniquePositions clusters sorted rule coordinates to within ruleTol.
func uniquePositions(vals []float64) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)
	out := []float64{vals[0]}
	for _, v := range vals[1:] {
		if v-out[len(out)-1] > ruleTol {
			out = append(out, v)
		}
	}
	return out
}

// tableFromRules reconstructs a grid from ruled lines: vertical rules
// are column edges, horizontal rules are row edges, and each run lands
// in the cell containing its position. Returns nil when there are not
// enough rules to bound a 1x1 grid.
func tableFromRules(runs []TextRun, rules []Line) [][]string {
	var xs, ys []float64
	for _, l := range rules {
		if l.Vertical() {
			xs = append(xs, l.X0)
		}
		if l.Horizontal() {
			ys = append(ys, l.Y0)
		}
	}
	xEdges := uniquePositions(xs)
	yEdges := uniquePositions(ys)
	if len(xEdges) < 2 || len(yEdges) < 2 {
		return nil
	}

	nCols := len(xEdges) - 1
	nRows := len(yEdges) - 1
	grid := make([][]string, nRows)
	for i := range grid {
		grid[i] = make([]string, nCols)
	}

	for _, r := range runs {
		col := bucketOf(xEdges, r.X)
		rowFromBottom := bucketOf(yEdges, r.Y)
		if col < 0 || rowFromBottom < 0 {
			continue
		}
		row := nRows - 1 - rowFromBottom // top row first
		if grid[row][col] == "" {
			grid[row][col] = r.Text
		} else {
			grid[row][col] += " " + r.Text
		}
	}

	if emptyGrid(grid) {
		return nil
	}
	return grid
}

func bucketOf(edges []float64, v float64) int {
	for i := 0; i+1 < len(edges); i++ {
		if v >= edges[i] && v < edges[i+1] {
			return i
		}
	}
	return -1
}

func emptyGrid(grid [][]string) bool {
	for _, row := range grid {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return false
			}
		}
	}
	return true
}

// pageTextOf renders runs as plain text, one visual row per line. The
// section classifier works on this.
func pageTextOf(runs []TextRun) string {
	rows := rowsOf(runs)
	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, r := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}
