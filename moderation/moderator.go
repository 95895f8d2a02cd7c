// Package moderation censors blocked words in chat content before it is
// persisted or broadcast. Matching runs on a normalized view of the text
// (lowercased, leet speak folded, punctuation stripped) so trivial
// obfuscation does not bypass the filter.
package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"strings"
	"unicode"

	"chat-rooms/errors"

	goahocorasick "github.com/anknown/ahocorasick"
)

//go:embed words/blocked.txt
var wordsFS embed.FS

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// textMapping relates positions in the normalized text back to the original runes.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// DefaultWords returns the embedded blocked-word list, one word per line,
// '#' comments ignored.
func DefaultWords() ([]string, error) {
	raw, err := wordsFS.ReadFile("words/blocked.txt")
	if err != nil {
		return nil, err
	}
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, scanner.Err()
}

// NewModerator builds the Aho-Corasick automaton over the normalized word list.
func NewModerator(blockedWords []string, replacement rune) (Moderator, error) {
	if len(blockedWords) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}
	patterns := make([][]rune, len(blockedWords))
	for i, word := range blockedWords {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces every character of a matched pattern with the replacement
// rune, preserving spacing and untouched text.
func (m *Moderator) Censor(original string) string {
	mapping := m.normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes)
}

// normalize builds the searchable view of the input and tracks original rune positions.
func (m *Moderator) normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet speak characters back to their alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
