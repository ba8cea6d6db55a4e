// Package moderation censors forbidden words in posted messages.
package moderation

import (
	"chat-presence/errors"
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator replaces every occurrence of a forbidden word with a mask rune.
// Matching ignores case, punctuation, spaces and common leet substitutions,
// so "B.4.d.g.€r" is caught by "badger".
type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// folded is a normalized text plus, for each kept rune, its index in the original.
type folded struct {
	runes  []rune
	origin []int
}

// NewModerator builds the automaton. Words that fold to nothing are ignored;
// errors.ErrEmptyWords is returned when no usable word remains.
func NewModerator(words []string, mask rune, log *slog.Logger) (*Moderator, error) {
	seen := make(map[string]struct{}, len(words))
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		f := fold(word)
		if len(f.runes) == 0 {
			continue
		}
		if _, ok := seen[string(f.runes)]; ok {
			continue
		}
		seen[string(f.runes)] = struct{}{}
		patterns = append(patterns, f.runes)
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return &Moderator{matcher: m, mask: mask}, nil
}

// ParseWords splits a comma separated list, trimming blanks.
func ParseWords(raw string) []string {
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// Censor returns the masked text and the forbidden words found, in order of
// appearance. Spacing and punctuation between masked letters are masked too.
func (m *Moderator) Censor(original string) (string, []string) {
	f := fold(original)
	if len(f.runes) == 0 {
		return original, nil
	}
	terms := m.matcher.MultiPatternSearch(f.runes, false)
	if len(terms) == 0 {
		return original, nil
	}

	out := []rune(original)
	var found []string
	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(f.origin) {
			continue
		}
		for i := f.origin[start]; i <= f.origin[end-1]; i++ {
			out[i] = m.mask
		}
		found = append(found, string(term.Word))
	}
	return string(out), found
}

func fold(s string) folded {
	src := []rune(s)
	f := folded{runes: make([]rune, 0, len(src)), origin: make([]int, 0, len(src))}
	for i, r := range src {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.origin = append(f.origin, i)
	}
	return f
}

func unleet(r rune) rune {
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
