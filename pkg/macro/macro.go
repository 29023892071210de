// Package macro expands {{...}} template tokens inside authored content at
// prompt-build time. Handlers live in a fixed, ordered registry; the first
// handler that recognizes a token wins, and unrecognized tokens are left
// verbatim. Expansion never fails: authored templates are untrusted text.
package macro

import (
	"hash/fnv"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fablekit/fablekit/pkg/world"
)

// trimSentinel marks a {{trim}} site; a final pass collapses it together
// with the whitespace around it.
const trimSentinel = "\x00trim\x00"

// env is the resolution context handed to every handler.
type env struct {
	world *world.WorldDefinition
	state *world.GameState
	index int // zero-based token occurrence within the template
}

// handler recognizes and resolves one macro kind. try returns the
// replacement and whether the token was handled.
type handler struct {
	name string
	try  func(body string, e env) (string, bool)
}

// registry order is the resolution order. First match wins.
var registry = []handler{
	{"comment", tryComment},
	{"trim", tryTrim},
	{"names", tryNames},
	{"turnCount", tryTurnCount},
	{"random", tryRandom},
	{"pick", tryPick},
	{"roll", tryRoll},
	{"clock", tryClock},
	{"idle", tryIdle},
	{"metadata", tryMetadata},
	{"variable", tryVariable},
}

// Expand interpolates every {{...}} token in template against the world and
// state. Each occurrence is assigned a zero-based index, which keeps
// {{pick}} stable per position within a turn.
func Expand(template string, w *world.WorldDefinition, s *world.GameState) string {
	var out strings.Builder
	out.Grow(len(template))

	index := 0
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		body, end, ok := scanToken(rest[start:])
		if !ok {
			out.WriteString(rest[start:])
			break
		}
		token := rest[start : start+end]
		rest = rest[start+end:]

		replaced := token
		e := env{world: w, state: s, index: index}
		for _, h := range registry {
			if r, handled := h.try(body, e); handled {
				replaced = r
				break
			}
		}
		out.WriteString(replaced)
		index++
	}

	return collapseTrim(out.String())
}

// scanToken consumes one {{...}} token from s (which starts with "{{"),
// tolerating one level of nested braces. Returns the inner body and the
// length of the whole token.
func scanToken(s string) (body string, length int, ok bool) {
	depth := 0
	for i := 2; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			if i+1 < len(s) && s[i+1] == '}' {
				return strings.TrimSpace(s[2:i]), i + 2, true
			}
		}
	}
	return "", 0, false
}

var trimPattern = regexp.MustCompile(`[ \t\r\n]*` + regexp.QuoteMeta(trimSentinel) + `[ \t\r\n]*`)

func collapseTrim(s string) string {
	if !strings.Contains(s, trimSentinel) {
		return s
	}
	return trimPattern.ReplaceAllString(s, "")
}

func tryComment(body string, _ env) (string, bool) {
	if strings.HasPrefix(body, "//") {
		return "", true
	}
	return "", false
}

func tryTrim(body string, _ env) (string, bool) {
	if body == "trim" {
		return trimSentinel, true
	}
	return "", false
}

func tryNames(body string, e env) (string, bool) {
	switch body {
	case "char":
		if name := e.world.Settings.CharacterName; name != "" {
			return name, true
		}
		if e.world.Name != "" {
			return e.world.Name, true
		}
		return "Character", true
	case "user":
		if name := e.world.Settings.UserName; name != "" {
			return name, true
		}
		return "User", true
	}
	return "", false
}

func tryTurnCount(body string, e env) (string, bool) {
	if body != "turnCount" {
		return "", false
	}
	return strconv.Itoa(e.state.TurnCount), true
}

// tryRandom re-rolls on every expansion; it is the one intentionally
// non-deterministic macro besides dice.
func tryRandom(body string, _ env) (string, bool) {
	opts, ok := splitArgs(body, "random")
	if !ok {
		return "", false
	}
	if len(opts) == 0 {
		return "", true
	}
	return opts[rand.Intn(len(opts))], true
}

// tryPick chooses deterministically, keyed by a stable hash of the token's
// position and the turn count: the same macro position yields the same
// choice within a turn but can vary between turns.
func tryPick(body string, e env) (string, bool) {
	opts, ok := splitArgs(body, "pick")
	if !ok {
		return "", false
	}
	if len(opts) == 0 {
		return "", true
	}
	h := fnv.New32a()
	h.Write([]byte(strconv.Itoa(e.index)))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(e.state.TurnCount)))
	return opts[h.Sum32()%uint32(len(opts))], true
}

var rollPattern = regexp.MustCompile(`^(\d*)[dD](\d+)([+-]\d+)?$`)

func tryRoll(body string, _ env) (string, bool) {
	spec, ok := strings.CutPrefix(body, "roll::")
	if !ok {
		return "", false
	}
	m := rollPattern.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return "", false
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	if count < 1 || sides < 1 {
		return "", false
	}
	if count > 100 {
		count = 100
	}
	total := 0
	for i := 0; i < count; i++ {
		total += rand.Intn(sides) + 1
	}
	if m[3] != "" {
		mod, _ := strconv.Atoi(m[3])
		total += mod
	}
	return strconv.Itoa(total), true
}

func tryClock(body string, _ env) (string, bool) {
	now := time.Now()
	switch body {
	case "time":
		return now.Format("3:04 PM"), true
	case "date":
		return now.Format("January 2, 2006"), true
	case "weekday":
		return now.Format("Monday"), true
	case "isodate":
		return now.Format("2006-01-02"), true
	case "isotime":
		return now.Format("15:04:05"), true
	}
	return "", false
}

// tryIdle humanizes the delta since the user's last message.
func tryIdle(body string, e env) (string, bool) {
	if body != "idle" {
		return "", false
	}
	ms, ok := world.ToNumber(e.state.Metadata[world.MetaLastUserMessageAt])
	if !ok || ms <= 0 {
		return "just now", true
	}
	return humanize.Time(time.UnixMilli(int64(ms))), true
}

func tryMetadata(body string, e env) (string, bool) {
	switch body {
	case "lastMessage", "lastUserMessage", "lastCharMessage":
		return world.Stringify(e.state.Metadata[body]), true
	case "model":
		if v, ok := e.state.Metadata[world.MetaModel]; ok {
			return world.Stringify(v), true
		}
		return e.world.Settings.Model, true
	}
	return "", false
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tryVariable is the terminal fallback: a bare identifier resolves against
// the variable store. Anything else stays verbatim.
func tryVariable(body string, e env) (string, bool) {
	if !identPattern.MatchString(body) {
		return "", false
	}
	v, ok := e.state.Variables[body]
	if !ok {
		return "", false
	}
	return world.Stringify(v), true
}

// splitArgs parses "name::a::b::c" into its options.
func splitArgs(body, name string) ([]string, bool) {
	rest, ok := strings.CutPrefix(body, name+"::")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, "::")
	opts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			opts = append(opts, p)
		}
	}
	return opts, true
}
