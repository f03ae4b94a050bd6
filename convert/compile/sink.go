package compile

import (
	"rptc/evidence"
)

// Alignment is the paragraph alignment requested through class tokens on a
// block element. Adapters are free to ignore it where the target format has
// no use for it.
type Alignment int

const (
	AlignDefault Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
	AlignJustify
)

// BlockOptions describes the block being opened so the adapter can pick
// paragraph style, numbering and placement. The zero value is a plain body
// block.
type BlockOptions struct {
	Heading int          // 1 through 6 for headings, 0 otherwise
	Quote   bool         // block renders quoted
	Pre     bool         // preformatted, monospace with literal line breaks
	List    *ListContext // set when the block is a list item
	Align   Alignment
}

// CellSpan describes one physical slot of a table grid handed to the sink.
// Exactly one cell call is made per slot of every row, covered slots
// included, and the adapter decides what the target format needs for them.
type CellSpan struct {
	Cols     int  // horizontal extent, for vertical continuations the width to keep
	Rows     int  // vertical extent
	CoveredH bool // slot is swallowed by a column span on its left
	CoveredV bool // slot is swallowed by a row span above
}

// Covered reports whether the slot carries no content of its own.
func (s CellSpan) Covered() bool {
	return s.CoveredH || s.CoveredV
}

// Sink is the destination contract the compiler drives. One implementation
// exists per output format, the shared walking, whitespace and numbering
// logic lives in this package. A sink is owned by a single compilation and
// is not safe for concurrent use.
//
// Blocks never nest: every OpenBlock is closed before the next one opens.
// Table calls bracket cell content, blocks emitted between OpenCell and
// CloseCell belong to that cell.
type Sink interface {
	// ListBase is the first numbering identity handed out to top level
	// lists of the document.
	ListBase() int

	OpenBlock(opts BlockOptions) error
	CloseBlock() error

	// EmitRun appends formatted text to the open block.
	EmitRun(text string, format Format) error
	// LineBreak breaks the line inside the open block without closing it.
	LineBreak() error

	OpenTable(cols int) error
	OpenRow() error
	OpenCell(span CellSpan) error
	CloseCell() error
	// CoveredCell stands in for a slot swallowed by a neighboring span.
	CoveredCell(span CellSpan) error
	CloseRow() error
	CloseTable() error

	// PlaceImage embeds a loaded evidence image at the current position.
	PlaceImage(img *evidence.Image) error
}
