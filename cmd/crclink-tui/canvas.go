package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dd0wney/crclink/pkg/session"
	"github.com/dd0wney/crclink/pkg/topology"
)

// Canvas cells start below the title row and inside the box border
const (
	gridCols = 80
	gridRows = 15
	gridTop  = 2
	gridLeft = 1
)

type cellKind uint8

const (
	cellEmpty cellKind = iota
	cellLink
	cellOnline
	cellOffline
	cellIdle
	cellUnknown
	cellSource
	cellDestination
)

var cellStyles = map[cellKind]lipgloss.Style{
	cellLink:        lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
	cellOnline:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true),
	cellOffline:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	cellIdle:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
	cellUnknown:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	cellSource:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF00FF")).Bold(true),
	cellDestination: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00FFFF")).Bold(true),
}

// grid maps the continuous canvas onto terminal cells
type grid struct {
	cols, rows int
	bounds     topology.Bounds
}

func newGrid(b topology.Bounds) grid {
	return grid{cols: gridCols, rows: gridRows, bounds: b}
}

// cell returns the cell containing p
func (g grid) cell(p topology.Position) (col, row int) {
	col = int(p.X * float64(g.cols) / g.bounds.Width)
	row = int(p.Y * float64(g.rows) / g.bounds.Height)
	return min(max(col, 0), g.cols-1), min(max(row, 0), g.rows-1)
}

// position returns the canvas point at the center of a cell
func (g grid) position(col, row int) topology.Position {
	return topology.Position{
		X: (float64(col) + 0.5) * g.bounds.Width / float64(g.cols),
		Y: (float64(row) + 0.5) * g.bounds.Height / float64(g.rows),
	}
}

// screen converts terminal coordinates to a cell
func (g grid) screen(x, y int) (col, row int, ok bool) {
	col, row = x-gridLeft, y-gridTop
	return col, row, col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

func (g grid) render(s session.State) string {
	runes := make([][]rune, g.rows)
	kinds := make([][]cellKind, g.rows)
	for r := range runes {
		runes[r] = []rune(strings.Repeat(" ", g.cols))
		kinds[r] = make([]cellKind, g.cols)
	}

	for _, seg := range s.Segments() {
		c0, r0 := g.cell(seg.From)
		c1, r1 := g.cell(seg.To)
		line(c0, r0, c1, r1, func(c, r int) {
			runes[r][c] = '·'
			kinds[r][c] = cellLink
		})
	}

	sel := s.Selection.Selection()
	src, hasSrc := sel.Source()
	dst, hasDst := sel.Destination()

	for _, n := range s.Registry.Nodes() {
		pos, _ := s.Position(n.ID)
		col, row := g.cell(pos)

		kind := statusKind(n.Status)
		switch {
		case hasSrc && n.ID == src:
			kind = cellSource
		case hasDst && n.ID == dst:
			kind = cellDestination
		}

		label := []rune("(" + n.ID.String() + ")")
		start := min(max(col-len(label)/2, 0), max(g.cols-len(label), 0))
		for i, ch := range label {
			if c := start + i; c < g.cols {
				runes[row][c] = ch
				kinds[row][c] = kind
			}
		}
	}

	var b strings.Builder
	for r := range runes {
		if r > 0 {
			b.WriteByte('\n')
		}
		renderRow(&b, runes[r], kinds[r])
	}
	return b.String()
}

// renderRow styles runs of equal kind together
func renderRow(b *strings.Builder, runes []rune, kinds []cellKind) {
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && kinds[j] == kinds[i] {
			j++
		}
		run := string(runes[i:j])
		if style, ok := cellStyles[kinds[i]]; ok {
			run = style.Render(run)
		}
		b.WriteString(run)
		i = j
	}
}

func statusKind(s topology.Status) cellKind {
	switch s {
	case topology.StatusOnline:
		return cellOnline
	case topology.StatusOffline:
		return cellOffline
	case topology.StatusIdle:
		return cellIdle
	default:
		return cellUnknown
	}
}

// line plots the cells between two points (Bresenham)
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
