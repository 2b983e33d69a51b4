package query

import (
	"strings"
	"time"
)

// Document exposes field values to the in-memory matcher.
type Document interface {
	Lookup(field Field) (any, bool)
}

// Match evaluates expr against doc. Unknown fields never match.
func Match(expr Expr, doc Document) bool {
	switch e := expr.(type) {
	case And:
		for _, child := range e {
			if !Match(child, doc) {
				return false
			}
		}

		return true
	case Or:
		for _, child := range e {
			if Match(child, doc) {
				return true
			}
		}

		return false
	case Cond:
		return matchCond(e, doc)
	case nil:
		return true
	}

	return false
}

func matchCond(c Cond, doc Document) bool {
	v, ok := doc.Lookup(c.Field)
	if !ok {
		return false
	}

	if c.Op == OpContainsFold {
		s, ok := v.(string)
		needle, nok := c.Value.(string)

		return ok && nok && strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	}

	cmp, ok := Compare(v, c.Value)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGte:
		return cmp >= 0
	}

	return false
}

// Compare orders two values of the same kind (string, time.Time, bool, int64).
// ok is false when the kinds differ.
func Compare(a, b any) (cmp int, ok bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}

		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}

		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}

		return 1, true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}

		return 0, true
	}

	return 0, false
}
