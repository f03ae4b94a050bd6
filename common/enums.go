// Enums shared between command line processing, conversion and debug tooling
// live in their own package so that none of those have to import
// configuration to agree on basic kinds.
package common

// Specification of requested output type.
// ENUM(docx, pptx)
type OutputFmt int

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtDocx:
		return ".docx"
	case OutputFmtPptx:
		return ".pptx"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}
