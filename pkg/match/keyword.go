// Package match implements keyword matching over recent conversation text
// and the lorebook selection pass that decides which world entries fire on a
// given turn. Everything here is pure: identical inputs produce identical
// output.
package match

import (
	"strings"
	"unicode"
)

// isJoiner reports punctuation that commonly appears inside a name or term
// and is preserved during canonicalization ("O'Brien", "Jean-Luc").
func isJoiner(r rune) bool {
	switch r {
	case '\'', '-', '.', '_', '/', '&':
		return true
	default:
		return false
	}
}

// Canonicalize folds text for matching: lowercase, straighten curly quotes
// and dashes, keep letters/digits/joiners, collapse every separator run into
// a single space. The same fold is applied to keywords and scan buffers so
// the two always agree.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		switch c {
		case '‘', '’':
			c = '\''
		case '–', '—':
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimRight(out.String(), " ")
}

// Matches reports whether keyword occurs in haystack. Plain mode is a
// case-insensitive substring test over canonicalized text. wholeWord bounds
// the occurrence by word boundaries. fuzzy tolerates a bounded edit distance
// and never matches fewer cases than exact. Empty keywords never match.
func Matches(haystack, keyword string, wholeWord, fuzzy bool) bool {
	kw := Canonicalize(keyword)
	if kw == "" {
		return false
	}
	hay := Canonicalize(haystack)

	if wholeWord {
		if containsWord(hay, kw) {
			return true
		}
	} else if strings.Contains(hay, kw) {
		return true
	}
	if !fuzzy {
		return false
	}
	return fuzzyContains(hay, kw)
}

// containsWord reports a substring occurrence bounded by word separators or
// string edges. In canonical text the only separator is a space.
func containsWord(hay, kw string) bool {
	for from := 0; ; {
		i := strings.Index(hay[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		leftOK := start == 0 || hay[start-1] == ' '
		rightOK := end == len(hay) || hay[end] == ' '
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}

// fuzzyContains slides the keyword over same-length word windows of the
// haystack and accepts when the edit distance stays within a length-scaled
// bound. Keywords shorter than four characters get no tolerance, so fuzzy
// degrades to exact for them.
func fuzzyContains(hay, kw string) bool {
	maxDist := editBudget(len(kw))
	if maxDist == 0 {
		return strings.Contains(hay, kw)
	}

	words := strings.Fields(hay)
	span := strings.Count(kw, " ") + 1
	for i := 0; i+span <= len(words); i++ {
		window := strings.Join(words[i:i+span], " ")
		if editDistanceAtMost(window, kw, maxDist) {
			return true
		}
	}
	return false
}

func editBudget(n int) int {
	switch {
	case n < 4:
		return 0
	case n < 8:
		return 1
	default:
		return 2
	}
}

// editDistanceAtMost reports whether the Levenshtein distance between a and
// b is within max, with an early exit when a row minimum exceeds the budget.
func editDistanceAtMost(a, b string, max int) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb)+max || len(rb) > len(ra)+max {
		return false
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > max {
			return false
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)] <= max
}
