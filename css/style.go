// Package css parses the inline style declarations carried by markup
// elements. Only the properties the converter acts on are extracted,
// everything else is skipped.
package css

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"rptc/common"
)

// Style carries the recognized properties of a style attribute.
type Style struct {
	Color     string // font color, RRGGBB
	Highlight bool   // set when a background color is declared
}

// backgroundOffKeywords are background-color values that do not produce a
// visible highlight.
var backgroundOffKeywords = map[string]bool{
	"transparent": true,
	"none":        true,
	"initial":     true,
	"inherit":     true,
	"unset":       true,
}

// ParseStyle extracts the recognized declarations from an inline style
// attribute value. When the same property is declared twice the later
// declaration wins.
func ParseStyle(style string, log *zap.Logger) Style {
	var st Style

	style = strings.TrimSpace(style)
	if style == "" {
		return st
	}
	if log == nil {
		log = zap.NewNop()
	}

	input := parse.NewInput(strings.NewReader(style))
	parser := css.NewParser(input, true)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				log.Debug("Inline style parse error", zap.String("style", style), zap.Error(parser.Err()))
			}
			return st

		case css.DeclarationGrammar:
			switch strings.ToLower(string(data)) {
			case "color":
				if c := colorFromTokens(parser.Values()); c != "" {
					st.Color = c
				}
			case "background-color":
				st.Highlight = declaresBackground(parser.Values())
			}
		}
	}
}

// colorFromTokens resolves a color declaration value to RRGGBB. Hex and
// rgb()/rgba() notations are recognized, anything else yields "".
func colorFromTokens(tokens []css.Token) string {
	for i, t := range tokens {
		switch t.TokenType {
		case css.HashToken:
			c, err := common.NormalizeHexColor(string(t.Data))
			if err != nil {
				return ""
			}
			return c
		case css.FunctionToken:
			name := strings.ToLower(strings.TrimSuffix(string(t.Data), "("))
			if name == "rgb" || name == "rgba" {
				return rgbFromTokens(tokens[i+1:])
			}
			return ""
		}
	}
	return ""
}

// rgbFromTokens reads the first three channel values of an rgb()/rgba()
// function. Percentages are scaled to the 0-255 range, the alpha channel
// is ignored.
func rgbFromTokens(tokens []css.Token) string {
	var channels []int
	for _, t := range tokens {
		switch t.TokenType {
		case css.NumberToken:
			v, err := strconv.ParseFloat(string(t.Data), 64)
			if err != nil {
				return ""
			}
			channels = append(channels, clampChannel(v))
		case css.PercentageToken:
			v, err := strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
			if err != nil {
				return ""
			}
			channels = append(channels, clampChannel(v*255/100))
		}
		if len(channels) == 3 {
			break
		}
	}
	if len(channels) < 3 {
		return ""
	}
	return fmt.Sprintf("%02X%02X%02X", channels[0], channels[1], channels[2])
}

// clampChannel rounds a channel value into the 0-255 range.
func clampChannel(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return int(math.Round(v))
	}
}

// declaresBackground reports whether a background-color value names an
// actual color rather than switching the background off.
func declaresBackground(tokens []css.Token) bool {
	for _, t := range tokens {
		switch t.TokenType {
		case css.HashToken, css.FunctionToken:
			return true
		case css.IdentToken:
			return !backgroundOffKeywords[strings.ToLower(string(t.Data))]
		}
	}
	return false
}
