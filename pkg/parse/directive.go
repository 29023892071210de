// Package parse extracts typed state mutations from model output. Model text
// is untrusted: both parsers degrade instead of failing, dropping anything
// they cannot recognize and leaving the narrative intact.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fablekit/fablekit/pkg/world"
)

// Result is the parsed form of one model reply.
type Result struct {
	CleanText    string
	Effects      []world.Effect
	AudioEffects []world.AudioEffect
	Choices      []string
}

// Audio directives are extracted before state directives so "[audio: ...]"
// can never be mis-parsed as a variable named "audio".
var audioPattern = regexp.MustCompile(
	`(?i)\[\s*audio\s*:\s*([A-Za-z0-9_-]+)\s+(play|stop|crossfade|volume)(?:\s+(\d+(?:\.\d+)?))?\s*\]`)

// The body admits brackets only inside a double-quoted string, so a value
// like "a ] b" does not end the directive early.
var directivePattern = regexp.MustCompile(
	`\[\s*([A-Za-z_][A-Za-z0-9_-]*)\s*:\s*((?:[^"\[\]]|"(?:[^"\\]|\\.)*")*?)\s*\]`)

// ParseDirectives scans model output for [variableId: operation value] and
// [audio: ...] tokens. Recognized tokens become effects; unrecognized ones
// are dropped silently. All directive text is stripped from the narrative
// and leftover double spaces collapsed.
func ParseDirectives(text string) Result {
	var res Result

	text = audioPattern.ReplaceAllStringFunc(text, func(tok string) string {
		m := audioPattern.FindStringSubmatch(tok)
		eff := world.AudioEffect{
			TrackID: m[1],
			Action:  world.AudioAction(strings.ToLower(m[2])),
		}
		if m[3] != "" {
			if vol, err := strconv.ParseFloat(m[3], 64); err == nil {
				eff.Volume = &vol
			}
		}
		res.AudioEffects = append(res.AudioEffects, eff)
		return ""
	})

	text = directivePattern.ReplaceAllStringFunc(text, func(tok string) string {
		m := directivePattern.FindStringSubmatch(tok)
		if eff, ok := parseDirectiveBody(m[1], m[2]); ok {
			res.Effects = append(res.Effects, eff)
		}
		return ""
	})

	res.CleanText = tidy(text)
	return res
}

// parseDirectiveBody interprets the text after "variableId:".
// Supported shorthands: "toggle", "+N" / "-N" / "*N", an explicit operation
// with value, or a bare value (implicit set).
func parseDirectiveBody(variableID, body string) (world.Effect, bool) {
	body = strings.TrimSpace(body)
	eff := world.Effect{VariableID: variableID}

	if body == "toggle" {
		eff.Operation = world.OpToggle
		return eff, true
	}

	if len(body) > 1 {
		var op world.Operation
		switch body[0] {
		case '+':
			op = world.OpAdd
		case '-':
			op = world.OpSubtract
		case '*':
			op = world.OpMultiply
		}
		if op != "" {
			if n, err := strconv.ParseFloat(strings.TrimSpace(body[1:]), 64); err == nil {
				eff.Operation = op
				eff.Value = n
				return eff, true
			}
			return eff, false
		}
	}

	if opName, rest, found := strings.Cut(body, " "); found || world.IsValidOperation(body) {
		if world.IsValidOperation(opName) {
			val, ok := parseValue(strings.TrimSpace(rest))
			if !ok && opName != string(world.OpToggle) {
				return eff, false
			}
			eff.Operation = world.Operation(opName)
			eff.Value = val
			return eff, true
		}
	}

	// Bare value: implicit set.
	if val, ok := parseValue(body); ok {
		eff.Operation = world.OpSet
		eff.Value = val
		return eff, true
	}
	return eff, false
}

// parseValue types a directive value: double-quoted string with backslash
// escapes, true/false, or a number.
func parseValue(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted, true
		}
		return nil, false
	}
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, true
	}
	return nil, false
}

var doubleSpace = regexp.MustCompile(`[ \t]{2,}`)
var spacedPunct = regexp.MustCompile(` +([.,!?;:])`)

// tidy collapses the holes left by stripped directives.
func tidy(s string) string {
	s = doubleSpace.ReplaceAllString(s, " ")
	s = spacedPunct.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
