package compile

import (
	"strings"

	"go.uber.org/zap"

	"rptc/markup"
)

// Grid is the logical rows by columns layout of one table with all
// colspan/rowspan extents resolved. Once built every row has the same
// width and every slot is either the origin of a source cell, a slot
// covered by a neighboring span, or a synthesized empty cell padding a
// short source row.
type Grid struct {
	cells [][]GridCell
}

// GridCell is one slot of the grid. Node is the source cell for origin
// slots and nil for covered and padding slots.
type GridCell struct {
	CellSpan
	Node *markup.Node
}

func (g *Grid) Rows() int {
	return len(g.cells)
}

func (g *Grid) Cols() int {
	if len(g.cells) == 0 {
		return 0
	}
	return len(g.cells[0])
}

func (g *Grid) At(row, col int) GridCell {
	return g.cells[row][col]
}

// BuildGrid resolves table markup into a grid. Pass one places every source
// cell into the first free slot of its row and marks the rectangle its
// spans occupy, pass two equalizes row widths. Row spans reaching past the
// last row are clamped, overlapping spans keep whatever was placed first.
func BuildGrid(table *markup.Node, log *zap.Logger) *Grid {
	if log == nil {
		log = zap.NewNop()
	}

	rows := tableRows(table, log)
	g := &Grid{cells: make([][]GridCell, len(rows))}

	for r, tr := range rows {
		for _, td := range tr.Children {
			if td.Kind == markup.NodeText {
				if strings.TrimSpace(td.Text) != "" {
					log.Warn("Stray text in table row, skipping", zap.String("text", td.Text))
				}
				continue
			}
			if td.Tag != markup.TagTD {
				log.Warn("Unexpected tag in table row, skipping", zap.String("tag", tagLabel(td)))
				continue
			}
			cols := td.SpanAttr(markup.AttrColSpan)
			rowspan := td.SpanAttr(markup.AttrRowSpan)
			if rowspan > len(rows)-r {
				rowspan = len(rows) - r
			}
			g.place(r, g.nextFree(r), td, cols, rowspan)
		}
	}

	g.pad()
	return g
}

// tableRows collects row elements, descending into tbody wrappers the
// parser may have synthesized.
func tableRows(table *markup.Node, log *zap.Logger) []*markup.Node {
	var rows []*markup.Node
	var collect func(n *markup.Node)
	collect = func(n *markup.Node) {
		for _, child := range n.Children {
			if child.Kind != markup.NodeElement {
				continue
			}
			switch child.Tag {
			case markup.TagTBody:
				collect(child)
			case markup.TagTR:
				rows = append(rows, child)
			default:
				log.Warn("Unexpected tag in table, skipping", zap.String("tag", tagLabel(child)))
			}
		}
	}
	collect(table)
	return rows
}

func (g *Grid) place(row, col int, td *markup.Node, cols, rows int) {
	g.set(row, col, GridCell{CellSpan: CellSpan{Cols: cols, Rows: rows}, Node: td})
	for rr := row; rr < row+rows; rr++ {
		for cc := col; cc < col+cols; cc++ {
			if rr == row && cc == col {
				continue
			}
			cell := GridCell{CellSpan: CellSpan{Cols: 1, Rows: 1}}
			if cc > col {
				cell.CoveredH = true
			}
			if rr > row {
				cell.CoveredV = true
			}
			if cell.CoveredV && !cell.CoveredH {
				// continuation slot keeps the width of the covering cell
				cell.Cols = cols
			}
			g.cover(rr, cc, cell)
		}
	}
}

// nextFree finds the first slot of the row not yet occupied by a cell or a
// span rectangle, extending the row when every slot is taken.
func (g *Grid) nextFree(row int) int {
	for col, cell := range g.cells[row] {
		if cell.Cols == 0 {
			return col
		}
	}
	return len(g.cells[row])
}

func (g *Grid) set(row, col int, cell GridCell) {
	g.grow(row, col)
	g.cells[row][col] = cell
}

func (g *Grid) cover(row, col int, cell GridCell) {
	g.grow(row, col)
	if g.cells[row][col].Cols == 0 {
		g.cells[row][col] = cell
	}
}

func (g *Grid) grow(row, col int) {
	for col >= len(g.cells[row]) {
		g.cells[row] = append(g.cells[row], GridCell{})
	}
}

// pad fills unoccupied slots with empty cells so that every row accounts
// for the full declared column count.
func (g *Grid) pad() {
	width := 0
	for _, row := range g.cells {
		width = max(width, len(row))
	}
	for r := range g.cells {
		for len(g.cells[r]) < width {
			g.cells[r] = append(g.cells[r], GridCell{})
		}
		for c, cell := range g.cells[r] {
			if cell.Cols == 0 {
				g.cells[r][c] = GridCell{CellSpan: CellSpan{Cols: 1, Rows: 1}}
			}
		}
	}
}

func tagLabel(n *markup.Node) string {
	if n.Tag == markup.TagUnknown && n.Name != "" {
		return n.Name
	}
	return n.Tag.String()
}
