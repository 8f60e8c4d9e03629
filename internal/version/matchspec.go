package version

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidSpecError reports a match specification that cannot be parsed.
type InvalidSpecError struct {
	Input  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid match spec %q: %s", e.Input, e.Reason)
}

// constraint is a single version test. Operator constraints compare order
// keys; prefix constraints match the normalized version text, which is how
// "1.18*" and "=1.18" behave.
type constraint struct {
	op     string
	key    OrderKey
	prefix string
	byText bool
}

func (c constraint) matches(key OrderKey) bool {
	if c.byText {
		return strings.HasPrefix(key.String(), c.prefix)
	}
	cmp := key.Compare(c.key)
	switch c.op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "!=":
		return cmp != 0
	default:
		return cmp == 0
	}
}

// Spec is a parsed package match specification: a package name and an
// optional version expression. Expressions combine constraints with ","
// (all must hold) and "|" (any may hold), as in "python >=3.7,<3.8.0a0"
// or "numpy 1.18*|1.19*".
type Spec struct {
	name string
	// alternatives holds the "|" branches; each branch is a ","
	// conjunction. Empty means any version.
	alternatives [][]constraint
	raw          string
}

// ParseSpec parses a match specification of the form "name [expression]".
// A third field (a build string) is accepted and ignored.
func ParseSpec(s string) (Spec, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Spec{}, &InvalidSpecError{Input: s, Reason: "empty spec"}
	}
	spec := Spec{name: strings.ToLower(fields[0]), raw: s}
	if len(fields) == 1 {
		return spec, nil
	}
	expr := strings.Join(fields[1:], " ")
	expr = strings.ReplaceAll(expr, ", ", ",")
	expr = strings.ReplaceAll(expr, "| ", "|")
	if i := strings.IndexByte(expr, ' '); i >= 0 {
		expr = expr[:i]
	}
	for _, branch := range strings.Split(expr, "|") {
		var conj []constraint
		for _, tok := range strings.Split(branch, ",") {
			c, err := parseConstraint(s, tok)
			if err != nil {
				return Spec{}, err
			}
			conj = append(conj, c)
		}
		spec.alternatives = append(spec.alternatives, conj)
	}
	return spec, nil
}

// MustParseSpec is ParseSpec for specs known to be valid; it panics
// otherwise.
func MustParseSpec(s string) Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// Name returns the package name the spec applies to, lowercased.
func (s Spec) Name() string { return s.name }

// String returns the spec as given.
func (s Spec) String() string { return s.raw }

// Match reports whether a record with the given name and version satisfies
// the spec. Names compare case-insensitively; unparsable versions never
// match.
func (s Spec) Match(name, version string) bool {
	if !strings.EqualFold(name, s.name) {
		return false
	}
	return s.MatchVersion(version)
}

// MatchVersion reports whether a version satisfies the spec's expression,
// ignoring the package name.
func (s Spec) MatchVersion(version string) bool {
	if len(s.alternatives) == 0 {
		return true
	}
	key, err := Order(version)
	if err != nil {
		return false
	}
	for _, conj := range s.alternatives {
		ok := true
		for _, c := range conj {
			if !c.matches(key) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// MatchAnyVersion reports whether any of the versions satisfies the spec's
// expression.
func (s Spec) MatchAnyVersion(versions []string) bool {
	for _, v := range versions {
		if s.MatchVersion(v) {
			return true
		}
	}
	return false
}

func parseConstraint(input, tok string) (constraint, error) {
	if tok == "" {
		return constraint{}, &InvalidSpecError{Input: input, Reason: "empty version constraint"}
	}
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if !strings.HasPrefix(tok, op) {
			continue
		}
		key, err := Order(tok[len(op):])
		if err != nil {
			return constraint{}, specErr(input, err)
		}
		return constraint{op: op, key: key}, nil
	}
	if strings.HasSuffix(tok, "*") {
		pat := strings.TrimPrefix(tok, "=")
		pat = strings.ToLower(strings.TrimSuffix(pat, "*"))
		if bad := strings.Trim(pat, ".*+!_0123456789abcdefghijklmnopqrstuvwxyz"); bad != "" {
			return constraint{}, &InvalidSpecError{Input: input, Reason: "invalid character(s)"}
		}
		return constraint{prefix: pat, byText: true}, nil
	}
	if strings.HasPrefix(tok, "=") {
		pat := strings.ToLower(strings.TrimPrefix(tok, "="))
		if pat == "" {
			return constraint{}, &InvalidSpecError{Input: input, Reason: "empty version constraint"}
		}
		if _, err := Order(pat); err != nil {
			return constraint{}, specErr(input, err)
		}
		return constraint{prefix: pat, byText: true}, nil
	}
	key, err := Order(tok)
	if err != nil {
		return constraint{}, specErr(input, err)
	}
	return constraint{op: "==", key: key}, nil
}

func specErr(input string, err error) error {
	var verr *InvalidVersionError
	if errors.As(err, &verr) {
		return &InvalidSpecError{Input: input, Reason: verr.Reason}
	}
	return &InvalidSpecError{Input: input, Reason: err.Error()}
}
