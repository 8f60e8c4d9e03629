// Package version implements conda's version ordering and package match
// specifications.
//
// Conda versions are not semver: they allow epochs ("1!2.0"), local suffixes
// ("1.0+hotfix"), underscore separators and free-form alphanumeric tags
// ("1.0.1_alpha3"), with "post" releases sorting above and "dev" releases
// below their neighbors. OrderKey captures the resulting total order and is
// what channel metadata uses to pick the latest record of a group.
package version

import (
	"fmt"
	"strings"
)

// atomKind distinguishes the comparable units inside a version component.
// Text sorts below numbers, and post sorts above every number.
type atomKind uint8

const (
	atomText atomKind = iota
	atomNumber
	atomPost
)

// atom is one digit-run or letter-run of a version component. Numbers keep
// their digits as a string with leading zeros stripped so arbitrarily long
// runs compare without overflow.
type atom struct {
	kind atomKind
	text string
}

func compareAtoms(a, b atom) int {
	aText := a.kind == atomText
	bText := b.kind == atomText
	switch {
	case aText && bText:
		return strings.Compare(a.text, b.text)
	case aText:
		return -1
	case bText:
		return 1
	}
	// Both numeric; post is infinity.
	if a.kind == atomPost || b.kind == atomPost {
		if a.kind == b.kind {
			return 0
		}
		if a.kind == atomPost {
			return 1
		}
		return -1
	}
	if len(a.text) != len(b.text) {
		if len(a.text) < len(b.text) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.text, b.text)
}

var zeroAtom = atom{kind: atomNumber, text: "0"}

// OrderKey is a version string converted into conda's total ordering.
// Keys are immutable; the zero value orders like version "0".
type OrderKey struct {
	norm       string
	components [][]atom // epoch first, then the release components
	local      [][]atom
}

// InvalidVersionError reports a version string that cannot be ordered.
type InvalidVersionError struct {
	Input  string
	Reason string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

// Order parses a version string into its ordering key.
//
// Comparison is case-insensitive. Dashes are accepted as underscores when the
// string does not already contain underscores. The general shape is
// "[epoch!]release[+local]"; release and local split into dot-separated
// components, each an alternating run of digits and tags.
func Order(s string) (OrderKey, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return OrderKey{}, &InvalidVersionError{Input: s, Reason: "empty version string"}
	}
	if !validVersion(norm) {
		if strings.Contains(norm, "-") && !strings.Contains(norm, "_") {
			norm = strings.ReplaceAll(norm, "-", "_")
		}
		if !validVersion(norm) {
			return OrderKey{}, &InvalidVersionError{Input: s, Reason: "invalid character(s)"}
		}
	}

	epoch := "0"
	rest := norm
	switch parts := strings.Split(norm, "!"); len(parts) {
	case 1:
	case 2:
		if !allDigits(parts[0]) {
			return OrderKey{}, &InvalidVersionError{Input: s, Reason: "epoch must be an integer"}
		}
		epoch = parts[0]
		rest = parts[1]
	default:
		return OrderKey{}, &InvalidVersionError{Input: s, Reason: "duplicated epoch separator '!'"}
	}

	var localRaw string
	switch parts := strings.Split(rest, "+"); len(parts) {
	case 1:
		rest = parts[0]
	case 2:
		rest = parts[0]
		localRaw = parts[1]
	default:
		return OrderKey{}, &InvalidVersionError{Input: s, Reason: "duplicated local version separator '+'"}
	}

	components, err := splitComponents(s, epoch, rest)
	if err != nil {
		return OrderKey{}, err
	}
	var local [][]atom
	if localRaw != "" {
		if local, err = splitComponents(s, "", localRaw); err != nil {
			return OrderKey{}, err
		}
	}

	return OrderKey{norm: norm, components: components, local: local}, nil
}

// MustOrder is Order for version strings known to be valid; it panics
// otherwise.
func MustOrder(s string) OrderKey {
	k, err := Order(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the normalized version text: lowercased, trimmed, with
// dashes folded into underscores. This is the canonical rendering written
// back into channel metadata.
func (k OrderKey) String() string {
	if k.norm == "" {
		return "0"
	}
	return k.norm
}

// Compare returns -1, 0 or 1 ordering k against other. Missing trailing
// components count as zero, so "1.1" and "1.1.0" compare equal.
func (k OrderKey) Compare(other OrderKey) int {
	if c := compareComponentLists(k.components, other.components); c != 0 {
		return c
	}
	return compareComponentLists(k.local, other.local)
}

// Equal reports whether the two keys occupy the same position in the order.
// Distinct spellings of one version ("1.1", "1.1.0") are equal.
func (k OrderKey) Equal(other OrderKey) bool {
	return k.Compare(other) == 0
}

// Compare orders two version keys; see OrderKey.Compare.
func Compare(a, b OrderKey) int {
	return a.Compare(b)
}

func compareComponentLists(a, b [][]atom) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var ca, cb []atom
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if c := compareComponent(ca, cb); c != 0 {
			return c
		}
	}
	return 0
}

func compareComponent(a, b []atom) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ca, cb := zeroAtom, zeroAtom
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if c := compareAtoms(ca, cb); c != 0 {
			return c
		}
	}
	return 0
}

// splitComponents breaks "epoch" plus a dot/underscore separated release
// string into atom lists. Components starting with a tag get a zero prepended
// to keep numbers and tags in phase across versions.
func splitComponents(input, epoch, s string) ([][]atom, error) {
	fields := strings.Split(strings.ReplaceAll(s, "_", "."), ".")
	components := make([][]atom, 0, len(fields)+1)
	if epoch != "" {
		components = append(components, []atom{numberAtom(epoch)})
	}
	for _, field := range fields {
		if field == "" {
			return nil, &InvalidVersionError{Input: input, Reason: "empty version component"}
		}
		runs := splitRuns(field)
		component := make([]atom, 0, len(runs)+1)
		if !isDigit(field[0]) {
			component = append(component, zeroAtom)
		}
		for _, run := range runs {
			switch {
			case isDigit(run[0]):
				component = append(component, numberAtom(run))
			case run == "post":
				component = append(component, atom{kind: atomPost})
			case run == "dev":
				// Upper-cased so it sorts below every other tag.
				component = append(component, atom{kind: atomText, text: "DEV"})
			default:
				component = append(component, atom{kind: atomText, text: run})
			}
		}
		components = append(components, component)
	}
	return components, nil
}

// splitRuns slices a component into maximal runs of digits and non-digits.
func splitRuns(s string) []string {
	var runs []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || isDigit(s[i]) != isDigit(s[start]) {
			runs = append(runs, s[start:i])
			start = i
		}
	}
	return runs
}

func numberAtom(digits string) atom {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return atom{kind: atomNumber, text: trimmed}
}

func validVersion(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c == '.' || c == '+' || c == '!' || c == '_' || c == '*':
		default:
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
