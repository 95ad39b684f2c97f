package connlimit

import "strconv"

// ParseLimit interprets the content of a limit file as a base-10
// signed integer with prefix semantics: optional leading whitespace,
// optional sign, then digits, stopping at the first non-digit. Trailing
// bytes (a newline, a comment) are ignored. No digits, or a value that
// overflows int64, is a parse failure.
func ParseLimit(b []byte) (int64, bool) {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}

	start := i
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	digits := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(string(b[start:i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
