// Package filter compiles record predicates and applies them through the
// read/display filter chain.
//
// The predicate language is deliberately small: protocol presence ("udp"),
// field comparison ("ip.src == 10.0.0.1", "tcp.dstport != 80",
// "ip.dst contains 10.0."), negation ("!tcp") and conjunction
// ("udp and ip.src == 10.0.0.1"). Predicates evaluate against the protocol
// and field sets a dissection produced.
package filter

import (
	"fmt"
	"strings"

	"github.com/banshee-data/dissect.report/internal/dissect"
)

// Predicate is a compiled filter expression. Predicates are immutable once
// compiled and safe for read-only sharing across every frame evaluation of
// a run.
type Predicate interface {
	// Match evaluates the predicate against a dissected frame.
	Match(res *dissect.Result) bool

	// Requirements reports the protocols and fields the predicate reads,
	// used to prime the dissection engine.
	Requirements() dissect.Request

	// String returns the source expression.
	String() string
}

// Compile turns an expression into a Predicate. An unparsable expression is
// a configuration error; it is surfaced here, before any frame is processed,
// never per-frame.
func Compile(expr string) (Predicate, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("empty filter expression")
	}

	parts, err := splitConjunction(trimmed)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", expr, err)
	}
	terms := make([]Predicate, 0, len(parts))
	for _, part := range parts {
		term, err := compileTerm(part)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return &andPredicate{expr: trimmed, terms: terms}, nil
}

// splitConjunction splits on top-level "and" / "&&" connectives. A
// connective with a missing operand is an error.
func splitConjunction(expr string) ([]string, error) {
	fields := strings.Fields(expr)
	var parts []string
	var cur []string
	for _, tok := range fields {
		if tok == "and" || tok == "&&" {
			if len(cur) == 0 {
				return nil, fmt.Errorf("connective %q with no left operand", tok)
			}
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) == 0 {
		return nil, fmt.Errorf("trailing connective")
	}
	parts = append(parts, strings.Join(cur, " "))
	return parts, nil
}

func compileTerm(term string) (Predicate, error) {
	negate := false
	rest := strings.TrimSpace(term)
	for {
		switch {
		case strings.HasPrefix(rest, "!"):
			negate = !negate
			rest = strings.TrimSpace(rest[1:])
		case strings.HasPrefix(rest, "not "):
			negate = !negate
			rest = strings.TrimSpace(rest[4:])
		default:
			goto parsed
		}
	}
parsed:
	if rest == "" {
		return nil, fmt.Errorf("dangling negation")
	}

	for _, op := range []string{"!=", "==", " contains "} {
		idx := strings.Index(rest, op)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(rest[:idx])
		value := strings.TrimSpace(rest[idx+len(op):])
		value = strings.Trim(value, `"'`)
		if err := checkToken(name); err != nil {
			return nil, err
		}
		if value == "" {
			return nil, fmt.Errorf("comparison %q has no value", rest)
		}
		return &fieldPredicate{
			expr:   term,
			name:   name,
			op:     strings.TrimSpace(op),
			value:  value,
			negate: negate,
		}, nil
	}

	if err := checkToken(rest); err != nil {
		return nil, err
	}
	return &protoPredicate{expr: term, name: rest, negate: negate}, nil
}

func checkToken(tok string) error {
	if tok == "" {
		return fmt.Errorf("empty term")
	}
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_':
		default:
			return fmt.Errorf("invalid character %q in term %q", r, tok)
		}
	}
	return nil
}

type protoPredicate struct {
	expr   string
	name   string
	negate bool
}

func (p *protoPredicate) Match(res *dissect.Result) bool {
	// A bare token with a dot is a field-presence test.
	ok := res.HasProtocol(p.name)
	if !ok && strings.Contains(p.name, ".") {
		ok = len(res.FieldValues(p.name)) > 0
	}
	if p.negate {
		return !ok
	}
	return ok
}

func (p *protoPredicate) Requirements() dissect.Request {
	if strings.Contains(p.name, ".") {
		return dissect.Request{Fields: []string{p.name}}
	}
	return dissect.Request{Protocols: []string{p.name}}
}

func (p *protoPredicate) String() string { return p.expr }

type fieldPredicate struct {
	expr   string
	name   string
	op     string
	value  string
	negate bool
}

func (p *fieldPredicate) Match(res *dissect.Result) bool {
	ok := false
	for _, v := range res.FieldValues(p.name) {
		switch p.op {
		case "==":
			ok = v == p.value
		case "!=":
			ok = v != p.value
		case "contains":
			ok = strings.Contains(v, p.value)
		}
		if ok {
			break
		}
	}
	if p.negate {
		return !ok
	}
	return ok
}

func (p *fieldPredicate) Requirements() dissect.Request {
	return dissect.Request{Fields: []string{p.name}}
}

func (p *fieldPredicate) String() string { return p.expr }

type andPredicate struct {
	expr  string
	terms []Predicate
}

func (p *andPredicate) Match(res *dissect.Result) bool {
	for _, t := range p.terms {
		if !t.Match(res) {
			return false
		}
	}
	return true
}

func (p *andPredicate) Requirements() dissect.Request {
	var req dissect.Request
	for _, t := range p.terms {
		tr := t.Requirements()
		req.Protocols = append(req.Protocols, tr.Protocols...)
		req.Fields = append(req.Fields, tr.Fields...)
	}
	return req
}

func (p *andPredicate) String() string { return p.expr }
