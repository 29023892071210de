package world

import (
	"fmt"
	"strings"
)

// EvalCondition evaluates a single condition against a state snapshot.
// Unknown variables and type mismatches evaluate to false rather than error;
// authored content is untrusted.
func EvalCondition(c Condition, s *GameState) bool {
	val, ok := s.Variables[c.VariableID]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEq:
		return valuesEqual(val, c.Value)
	case OpNeq:
		return !valuesEqual(val, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := ToNumber(val)
		b, bok := ToNumber(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpContains:
		return strings.Contains(
			strings.ToLower(Stringify(val)),
			strings.ToLower(Stringify(c.Value)),
		)
	default:
		return false
	}
}

// EvalConditions combines a condition list with AND or OR logic.
// An empty list is vacuously true.
func EvalConditions(conds []Condition, logic ConditionLogic, s *GameState) bool {
	if len(conds) == 0 {
		return true
	}
	if logic == LogicOr {
		for _, c := range conds {
			if EvalCondition(c, s) {
				return true
			}
		}
		return false
	}
	for _, c := range conds {
		if !EvalCondition(c, s) {
			return false
		}
	}
	return true
}

// valuesEqual compares two state values, treating all numeric encodings
// (int from authored Go values, float64 from JSON) as one type.
func valuesEqual(a, b any) bool {
	if af, aok := ToNumber(a); aok {
		if bf, bok := ToNumber(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

// ToNumber coerces a state value to float64. Booleans and strings are not
// numbers; JSON decoding yields float64 but authored Go literals may be ints.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Stringify renders a state value the way prompts and macros display it:
// integral floats print without a trailing ".0".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
