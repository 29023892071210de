package match

import (
	"sort"
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/fablekit/fablekit/pkg/world"
)

// DefaultTokenBudget is the soft cap on triggered entry content per turn.
const DefaultTokenBudget = 2048

// MaxRecursionDepth bounds cascading re-scans. Requested depths are clamped
// into [0, MaxRecursionDepth].
const MaxRecursionDepth = 10

// Selection is the output of one lorebook pass. AlwaysSend entries bypass
// matching and budgeting entirely; Triggered entries matched this turn, in
// final injection order, with TriggeredTokens their estimated token spend.
type Selection struct {
	AlwaysSend      []world.WorldEntry
	Triggered       []world.WorldEntry
	TriggeredTokens int
}

// EstimateTokens is the deliberate 4-chars-per-token approximation used for
// budgeting. Rounds up.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// candidate tracks one non-mandatory entry through the recursion scan.
type candidate struct {
	entry     world.WorldEntry
	order     int // original slice position, final tie-break
	activated bool
	score     int
}

// Select runs the lorebook matching pass: partition, recursive keyword scan,
// group resolution, ordering, and greedy token budgeting.
//
// recentMessages is ordered most-recent last. A non-positive tokenBudget
// selects DefaultTokenBudget.
func Select(entries []world.WorldEntry, recentMessages []string, state *world.GameState, tokenBudget, recursionDepth int) Selection {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if recursionDepth < 0 {
		recursionDepth = 0
	}
	if recursionDepth > MaxRecursionDepth {
		recursionDepth = MaxRecursionDepth
	}

	var sel Selection
	var candidates []candidate
	for i, e := range entries {
		if !e.Enabled || e.Position == world.PosGreeting {
			continue
		}
		if e.AlwaysSend {
			sel.AlwaysSend = append(sel.AlwaysSend, e)
			continue
		}
		candidates = append(candidates, candidate{entry: e, order: i})
	}
	if len(candidates) == 0 {
		return sel
	}

	scanner := newKeywordScanner(candidates)
	buffer := strings.Join(recentMessages, "\n")

	for depth := 0; depth <= recursionDepth; depth++ {
		matched := scanner.scan(buffer)
		var appended []string

		for i := range candidates {
			c := &candidates[i]
			if c.activated {
				continue
			}
			if depth > 0 && c.entry.ExcludeRecursion {
				continue
			}
			// Cheap gate first: state conditions, then keywords.
			if !world.EvalConditions(c.entry.Conditions, c.entry.ConditionLogic, state) {
				continue
			}

			primary := scanner.countMatches(c.entry, c.entry.Keywords, buffer, matched)
			if primary == 0 {
				continue
			}
			score := primary
			if len(c.entry.SecondaryKeywords) > 0 {
				if !secondaryPass(scanner, c.entry, buffer, matched) {
					continue
				}
				score++
			}

			c.activated = true
			c.score = score
			if !c.entry.PreventRecursion {
				appended = append(appended, c.entry.Content)
			}
		}

		if len(appended) == 0 {
			break
		}
		buffer += "\n" + strings.Join(appended, "\n")
	}

	survivors := resolveGroups(candidates)

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].entry.Priority != survivors[j].entry.Priority {
			return survivors[i].entry.Priority > survivors[j].entry.Priority
		}
		return survivors[i].score > survivors[j].score
	})

	// Greedy fill. The budget is a soft cap: the top entry is always
	// admitted even when it alone exceeds it.
	for i, c := range survivors {
		cost := EstimateTokens(c.entry.Content)
		if i > 0 && sel.TriggeredTokens+cost > tokenBudget {
			continue
		}
		sel.Triggered = append(sel.Triggered, c.entry)
		sel.TriggeredTokens += cost
	}
	return sel
}

// secondaryPass applies the secondary-keyword truth table. NOT_ALL means
// "not every secondary keyword matched", kept verbatim from the authored
// contract despite the double negative.
func secondaryPass(s *keywordScanner, e world.WorldEntry, buffer string, matched map[string]bool) bool {
	hits := s.countMatches(e, e.SecondaryKeywords, buffer, matched)
	total := liveKeywords(e.SecondaryKeywords)
	switch e.SecondaryKeywordLogic {
	case world.SecondaryAndAll:
		return total > 0 && hits == total
	case world.SecondaryNotAny:
		return hits == 0
	case world.SecondaryNotAll:
		return hits < total
	default: // AND_ANY
		return hits > 0
	}
}

func liveKeywords(kws []string) int {
	n := 0
	for _, kw := range kws {
		if Canonicalize(kw) != "" {
			n++
		}
	}
	return n
}

func resolveGroups(candidates []candidate) []candidate {
	var survivors []candidate
	best := map[string]int{} // group -> index into survivors
	for _, c := range candidates {
		if !c.activated {
			continue
		}
		g := c.entry.Group
		if g == "" {
			survivors = append(survivors, c)
			continue
		}
		if i, ok := best[g]; ok {
			cur := survivors[i]
			if c.score > cur.score ||
				(c.score == cur.score && c.entry.Priority > cur.entry.Priority) {
				survivors[i] = c
			}
			continue
		}
		best[g] = len(survivors)
		survivors = append(survivors, c)
	}
	return survivors
}

// keywordScanner batches the plain-mode keywords of every candidate into one
// Aho-Corasick automaton, so each depth iteration scans the buffer once.
// Whole-word and fuzzy keywords fall back to direct Matches checks.
type keywordScanner struct {
	ac       *ahocorasick.Automaton
	patterns []string
	index    map[string]int
}

func newKeywordScanner(candidates []candidate) *keywordScanner {
	s := &keywordScanner{index: map[string]int{}}
	for _, c := range candidates {
		if c.entry.MatchWholeWords || c.entry.UseFuzzyMatch {
			continue
		}
		for _, kw := range append(append([]string{}, c.entry.Keywords...), c.entry.SecondaryKeywords...) {
			key := Canonicalize(kw)
			if key == "" {
				continue
			}
			if _, ok := s.index[key]; !ok {
				s.index[key] = len(s.patterns)
				s.patterns = append(s.patterns, key)
			}
		}
	}
	if len(s.patterns) == 0 {
		return s
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(s.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		// Fall back to per-keyword substring checks.
		return s
	}
	s.ac = ac
	return s
}

// scan returns the set of canonical patterns present in the buffer.
func (s *keywordScanner) scan(buffer string) map[string]bool {
	if s.ac == nil {
		return nil
	}
	hay := []byte(Canonicalize(buffer))
	found := map[string]bool{}
	for _, m := range s.ac.FindAllOverlapping(hay) {
		found[s.patterns[m.PatternID]] = true
	}
	return found
}

// countMatches counts how many of the given keywords occur in the buffer,
// consulting the batch scan for plain-mode entries.
func (s *keywordScanner) countMatches(e world.WorldEntry, keywords []string, buffer string, matched map[string]bool) int {
	n := 0
	for _, kw := range keywords {
		key := Canonicalize(kw)
		if key == "" {
			continue
		}
		if !e.MatchWholeWords && !e.UseFuzzyMatch && s.ac != nil {
			if matched[key] {
				n++
			}
			continue
		}
		if Matches(buffer, kw, e.MatchWholeWords, e.UseFuzzyMatch) {
			n++
		}
	}
	return n
}
