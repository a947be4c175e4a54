package testkit

import (
	"fmt"
	"regexp"

	"github.com/toy-run/toy/value"
)

// Operator is a predicate's comparison, mirrored from the original filter
// plugin's Match/Unmatch pair.
type Operator string

const (
	OpMatch   Operator = "Match"
	OpUnmatch Operator = "Unmatch"
)

// Predicate tests one dotted Field of an inbound Value against a regular
// expression. A non-string field (or a missing one) never matches.
type Predicate struct {
	Field string
	Op    Operator
	re    *regexp.Regexp
}

func newPredicate(field string, op Operator, pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Predicate{}, fmt.Errorf("testkit: filter: %q: %w", pattern, err)
	}
	return Predicate{Field: field, Op: op, re: re}, nil
}

// Eval reports whether v satisfies this predicate.
func (p Predicate) Eval(v value.Value) bool {
	target := v
	if p.Field != "" {
		field, ok := v.Path(p.Field)
		if !ok {
			return false
		}
		target = field
	}
	s, ok := target.AsString()
	if !ok {
		return false
	}
	matched := p.re.MatchString(s)
	if p.Op == OpUnmatch {
		return !matched
	}
	return matched
}

func predicatesFromConfig(cfg value.Value) ([]Predicate, error) {
	if cfg.Kind() != value.KindMap {
		return nil, nil
	}
	raw, ok := cfg.Get("preds")
	if !ok {
		return nil, nil
	}
	seq, ok := raw.AsSeq()
	if !ok {
		return nil, fmt.Errorf("testkit: filter: preds must be a sequence")
	}

	preds := make([]Predicate, 0, len(seq))
	for _, e := range seq {
		field, _ := valueOr(e, "field", "")
		opStr, _ := valueOr(e, "op", string(OpMatch))
		pattern, _ := valueOr(e, "val", "")

		p, err := newPredicate(field, Operator(opStr), pattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func valueOr(m value.Value, key, fallback string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return fallback, false
	}
	s, ok := v.AsString()
	if !ok {
		return fallback, false
	}
	return s, true
}
