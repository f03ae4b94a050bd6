package compile_test

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"rptc/convert/compile"
	"rptc/markup"
)

func parseTable(t *testing.T, src string) *markup.Node {
	t.Helper()
	doc := parseFragment(t, src)
	for _, n := range doc.Roots {
		if n.Kind == markup.NodeElement && n.Tag == markup.TagTable {
			return n
		}
	}
	t.Fatalf("no table in fragment %q", src)
	return nil
}

func TestBuildGridSpans(t *testing.T) {
	src := `<table><tbody><tr><td colspan="2" rowspan="2">A</td><td>B</td></tr><tr><td>C</td></tr></tbody></table>`
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))

	if grid.Rows() != 2 || grid.Cols() != 3 {
		t.Fatalf("grid is %dx%d, want 2x3", grid.Rows(), grid.Cols())
	}

	origin := grid.At(0, 0)
	if origin.Node == nil || origin.Cols != 2 || origin.Rows != 2 {
		t.Errorf("origin slot = %+v", origin)
	}
	if c := grid.At(0, 1); !c.CoveredH || c.CoveredV || c.Node != nil {
		t.Errorf("slot (0,1) = %+v", c)
	}
	if c := grid.At(0, 2); c.Covered() || c.Node == nil {
		t.Errorf("slot (0,2) = %+v", c)
	}
	if c := grid.At(1, 0); !c.CoveredV || c.CoveredH || c.Cols != 2 {
		t.Errorf("slot (1,0) = %+v", c)
	}
	if c := grid.At(1, 1); !c.CoveredH || !c.CoveredV {
		t.Errorf("slot (1,1) = %+v", c)
	}
	if c := grid.At(1, 2); c.Covered() || c.Node == nil {
		t.Errorf("slot (1,2) = %+v", c)
	}
}

func TestBuildGridShortRows(t *testing.T) {
	src := "<table><tr><td>a</td><td>b</td><td>c</td></tr><tr><td>d</td></tr></table>"
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))

	if grid.Rows() != 2 || grid.Cols() != 3 {
		t.Fatalf("grid is %dx%d, want 2x3", grid.Rows(), grid.Cols())
	}
	for col := 1; col < 3; col++ {
		cell := grid.At(1, col)
		if cell.Covered() || cell.Node != nil || cell.Cols != 1 {
			t.Errorf("padding slot (1,%d) = %+v", col, cell)
		}
	}
}

func TestBuildGridRowspanClamped(t *testing.T) {
	src := `<table><tr><td rowspan="5">tall</td><td>top</td></tr><tr><td>bottom</td></tr></table>`
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))

	if grid.Rows() != 2 {
		t.Fatalf("grid has %d rows, want 2", grid.Rows())
	}
	if c := grid.At(0, 0); c.Rows != 2 {
		t.Errorf("clamped rowspan = %d, want 2", c.Rows)
	}
	if c := grid.At(1, 0); !c.CoveredV {
		t.Errorf("slot (1,0) = %+v", c)
	}
}

func TestBuildGridRowGaps(t *testing.T) {
	// the second source row has no cells at all, coverage from the first
	// row still lands and the gap is padded
	src := `<table><tr><td>a</td><td rowspan="2">b</td></tr><tr></tr></table>`
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))

	if grid.Rows() != 2 || grid.Cols() != 2 {
		t.Fatalf("grid is %dx%d, want 2x2", grid.Rows(), grid.Cols())
	}
	if c := grid.At(1, 0); c.Covered() || c.Node != nil {
		t.Errorf("padded slot (1,0) = %+v", c)
	}
	if c := grid.At(1, 1); !c.CoveredV {
		t.Errorf("slot (1,1) = %+v", c)
	}
}

func TestBuildGridEmpty(t *testing.T) {
	grid := compile.BuildGrid(parseTable(t, "<table></table>"), zaptest.NewLogger(t))
	if grid.Rows() != 0 {
		t.Errorf("expected empty grid, got %d rows", grid.Rows())
	}
}

func TestBuildGridDefaultSpans(t *testing.T) {
	src := `<table><tr><td colspan="junk" rowspan="-2">x</td></tr></table>`
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))

	if grid.Rows() != 1 || grid.Cols() != 1 {
		t.Fatalf("grid is %dx%d, want 1x1", grid.Rows(), grid.Cols())
	}
	if c := grid.At(0, 0); c.Cols != 1 || c.Rows != 1 {
		t.Errorf("slot = %+v", c)
	}
}

func TestGridCellText(t *testing.T) {
	src := "<table><tr><td>payload</td></tr></table>"
	grid := compile.BuildGrid(parseTable(t, src), zaptest.NewLogger(t))
	node := grid.At(0, 0).Node
	if node == nil || !strings.Contains(node.AsPlainText(), "payload") {
		t.Errorf("cell node = %v", node)
	}
}
