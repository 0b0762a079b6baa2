package corpus

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// numberText renders a JSON number literal the way records have always
// been stringified: integers keep their digits, everything else is parsed
// as a float64 and printed in shortest round-trip form with a ".0" on whole
// values ("1.50" → "1.5", "1E2" → "100.0"). Exponent notation is used below
// 1e-4 and from 1e16 up. nested selects the JSON spelling of infinities
// over the plain one.
func numberText(literal string, nested bool) string {
	if !strings.ContainsAny(literal, ".eE") {
		if literal == "-0" {
			return "0"
		}
		return literal
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return literal
	}
	switch {
	case math.IsInf(f, 1) && nested:
		return "Infinity"
	case math.IsInf(f, -1) && nested:
		return "-Infinity"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

// boolText spells a top-level bool with a capital letter; inside lists and
// objects bools stay JSON.
func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
