package services

import (
	"strings"
	"unicode"
)

// naturalLess compares strings in a way that treats numbers as numbers rather than characters.
// For example: "Season 2" < "Season 10". Letters compare case-insensitively, with the
// exact string as a tie breaker so the order is total.
func naturalLess(s1, s2 string) bool {
	a, b := []rune(s1), []rune(s2)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if unicode.IsDigit(a[i]) && unicode.IsDigit(b[j]) {
			si := i
			for i < len(a) && unicode.IsDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && unicode.IsDigit(b[j]) {
				j++
			}
			n1 := strings.TrimLeft(string(a[si:i]), "0")
			n2 := strings.TrimLeft(string(b[sj:j]), "0")
			// Longer digit runs are larger numbers; no overflow for long runs.
			if len(n1) != len(n2) {
				return len(n1) < len(n2)
			}
			if n1 != n2 {
				return n1 < n2
			}
			continue
		}

		r1, r2 := unicode.ToLower(a[i]), unicode.ToLower(b[j])
		if r1 != r2 {
			return r1 < r2
		}
		i++
		j++
	}

	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return s1 < s2
}
