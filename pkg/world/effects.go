package world

// ApplyEffect computes the result of one effect against the current value of
// its variable. Numeric results are clamped into the variable's declared
// [min, max]; type-mismatched operations are no-ops. The returned bool
// reports whether the value actually changed.
//
// This is the single source of effect semantics, shared by the state manager
// and the rules engine's throwaway notification snapshots.
func ApplyEffect(current any, v *Variable, eff Effect) (any, bool) {
	next := current
	switch eff.Operation {
	case OpSet:
		if eff.Value == nil {
			return current, false
		}
		next = eff.Value
		if _, isNum := ToNumber(next); isNum && v != nil {
			n, _ := ToNumber(next)
			next = clamp(n, v)
		}
	case OpAdd, OpSubtract, OpMultiply:
		cur, curOK := ToNumber(current)
		arg, argOK := ToNumber(eff.Value)
		if !curOK || !argOK {
			return current, false
		}
		switch eff.Operation {
		case OpAdd:
			cur += arg
		case OpSubtract:
			cur -= arg
		default:
			cur *= arg
		}
		next = clamp(cur, v)
	case OpToggle:
		b, ok := current.(bool)
		if !ok {
			return current, false
		}
		next = !b
	case OpAppend:
		s, ok := current.(string)
		if !ok {
			return current, false
		}
		next = s + Stringify(eff.Value)
	default:
		return current, false
	}
	return next, !valuesEqual(current, next)
}

func clamp(n float64, v *Variable) float64 {
	if v != nil {
		if v.Min != nil && n < *v.Min {
			n = *v.Min
		}
		if v.Max != nil && n > *v.Max {
			n = *v.Max
		}
	}
	return n
}
