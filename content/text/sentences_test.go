package text

import (
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSplitterSplit(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("expected English tokenizer to load")
	}

	t.Run("TwoSentences", func(t *testing.T) {
		got := s.Split("The host was compromised. Credentials were reused across systems.")
		want := []string{"The host was compromised. ", "Credentials were reused across systems."}
		if !slices.Equal(got, want) {
			t.Errorf("Split() = %q, want %q", got, want)
		}
	})

	t.Run("SingleSentence", func(t *testing.T) {
		got := s.Split("No findings.")
		if len(got) != 1 || got[0] != "No findings." {
			t.Errorf("Split() = %q", got)
		}
	})

	t.Run("AbbreviationNotSplit", func(t *testing.T) {
		got := s.Split("Mr. Smith approved the scope. Testing started.")
		if len(got) != 2 {
			t.Errorf("expected 2 sentences, got %d: %q", len(got), got)
		}
	})
}

func TestSplitterSentences(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("expected English tokenizer to load")
	}

	var got []string
	for sentence := range s.Sentences("First point. Second point. Third point.") {
		got = append(got, sentence)
	}
	want := []string{"First point. ", "Second point. ", "Third point."}
	if !slices.Equal(got, want) {
		t.Errorf("Sentences() = %q, want %q", got, want)
	}

	t.Run("EarlyStop", func(t *testing.T) {
		var count int
		for range s.Sentences("One. Two. Three.") {
			count++
			if count == 2 {
				break
			}
		}
		if count != 2 {
			t.Errorf("iterator did not stop early, yielded %d", count)
		}
	})
}

func TestSplitterNil(t *testing.T) {
	var s *Splitter

	got := s.Split("Everything passes through. As one chunk.")
	if len(got) != 1 || got[0] != "Everything passes through. As one chunk." {
		t.Errorf("nil splitter Split() = %q", got)
	}

	var collected []string
	for sentence := range s.Sentences("Same here. Untouched.") {
		collected = append(collected, sentence)
	}
	if len(collected) != 1 || collected[0] != "Same here. Untouched." {
		t.Errorf("nil splitter Sentences() = %q", collected)
	}
}
