package textutil

import "strings"

const DefaultMaxLength = 2800

// Splitter breaks long text into chunks no longer than MaxLength runes,
// preferring line breaks, then spaces, then a hard cut.
type Splitter struct {
	MaxLength int
}

func NewSplitter(maxLength int) *Splitter {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Splitter{MaxLength: maxLength}
}

func (s *Splitter) Split(text string) []string {
	remaining := []rune(text)
	if len(remaining) <= s.MaxLength {
		return []string{text}
	}

	out := make([]string, 0, len(remaining)/s.MaxLength+1)
	for len(remaining) > 0 {
		if len(remaining) <= s.MaxLength {
			out = append(out, string(remaining))
			break
		}

		window := remaining[:s.MaxLength]
		if cut := lastIndex(window, '\n'); cut > 0 {
			out = append(out, string(remaining[:cut]))
			remaining = remaining[cut+1:]
			continue
		}
		if cut := lastIndex(window, ' '); cut > 0 {
			out = append(out, string(remaining[:cut]))
			remaining = remaining[cut+1:]
			continue
		}
		out = append(out, string(window))
		remaining = remaining[s.MaxLength:]
	}
	return out
}

func lastIndex(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// Truncate shortens text to maxLength runes including suffix.
func Truncate(text string, maxLength int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	keep := maxLength - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + suffix
}

// NormalizeWhitespace collapses every whitespace run into a single space.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
