// Package text breaks paragraph text into sentences for presentation
// bullets.
package text

import (
	"iter"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

// Splitter tokenizes text into sentences. A nil Splitter passes text
// through whole.
type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter loads the English tokenizer training data shipped with the
// sentences module. Report markup is English only, there is no language
// selection.
func NewSplitter(log *zap.Logger) *Splitter {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data, turning off sentence splitting", zap.Error(err))
		return nil
	}
	return &Splitter{tokenizer}
}

// Split returns slice of sentences.
// For memory-efficient streaming, use Sentences iterator instead.
func (s *Splitter) Split(in string) []string {

	var result []string
	if s == nil {
		// sentence tokenizer is off
		return append(result, in)
	}

	for _, sentence := range s.Tokenize(in) {
		result = append(result, sentence.Text)
	}

	// Sentence trailing spaces belong to the next sentence in the
	// tokenizer output, which would turn into stray leading spaces on
	// bullets. Move them back without touching the external
	// "github.com/neurosnap/sentences" module.

	for i := range len(result) - 1 {
		for idx, sym := range result[i+1] {
			if !unicode.IsSpace(sym) {
				result[i] = result[i] + result[i+1][0:idx]
				result[i+1] = result[i+1][idx:]
				break
			}
		}
	}
	return result
}

// Sentences returns an iterator over sentences.
// This is more memory-efficient than Split for large texts as it doesn't
// allocate a slice for all sentences upfront. The iterator applies the
// same space handling as Split.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			yield(in)
			return
		}

		tokenized := s.Tokenize(in)
		if len(tokenized) == 0 {
			return
		}

		for i := 0; i < len(tokenized)-1; i++ {
			text := tokenized[i].Text

			// Leading spaces of the next sentence belong to the current
			// one, same as in Split.

			nextText := tokenized[i+1].Text
			for idx, sym := range nextText {
				if !unicode.IsSpace(sym) {
					text = text + nextText[0:idx]
					tokenized[i+1].Text = nextText[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		yield(tokenized[len(tokenized)-1].Text)
	}
}
