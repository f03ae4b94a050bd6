package compile

// Format is the inline formatting accumulated while walking nested markup
// tags. It travels by value through the walk, every nesting level works on
// its own copy, so styling never leaks from a child to its siblings.
// Combining is union for the flags while color and hyperlink follow the
// nearest ancestor that set them.
type Format struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Sub       bool
	Sup       bool
	Highlight bool
	Code      bool
	Color     string // font color, RRGGBB
	Hyperlink string // link target covering the run
}
