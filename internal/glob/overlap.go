// Package glob decides whether two path patterns can match the same path.
// Patterns support literals, '*' (any run of non-separator characters) and
// '?' (any single non-separator character). Character classes are not
// supported; reservation patterns in practice are plain paths or prefix
// globs like "internal/*.go".
package glob

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxWildcards = 16

// Validate rejects patterns that are empty or pathologically wildcard-heavy.
func Validate(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty pattern")
	}
	if n := strings.Count(pattern, "*") + strings.Count(pattern, "?"); n > maxWildcards {
		return fmt.Errorf("pattern too complex: %d wildcards exceeds limit of %d", n, maxWildcards)
	}
	return nil
}

// Overlap reports whether patterns a and b can match the same path.
// Patterns with differing segment counts never overlap ('*' does not cross
// path separators).
func Overlap(a, b string) bool {
	segsA := strings.Split(filepath.ToSlash(a), "/")
	segsB := strings.Split(filepath.ToSlash(b), "/")
	if len(segsA) != len(segsB) {
		return false
	}
	for i := range segsA {
		if !segmentsOverlap(segsA[i], segsB[i]) {
			return false
		}
	}
	return true
}

// segmentsOverlap walks the product of the two segment patterns. A pair of
// positions (i,j) is reachable if some string is matched by a[:i]-so-far and
// b[:j]-so-far; overlap holds when (len(a),len(b)) is reachable.
func segmentsOverlap(a, b string) bool {
	ra, rb := []rune(a), []rune(b)

	type pos struct{ i, j int }
	seen := map[pos]bool{}
	stack := []pos{{0, 0}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[p] {
			continue
		}
		seen[p] = true

		if p.i == len(ra) && p.j == len(rb) {
			return true
		}

		// '*' may consume zero characters.
		if p.i < len(ra) && ra[p.i] == '*' {
			stack = append(stack, pos{p.i + 1, p.j})
		}
		if p.j < len(rb) && rb[p.j] == '*' {
			stack = append(stack, pos{p.i, p.j + 1})
		}
		if p.i >= len(ra) || p.j >= len(rb) {
			continue
		}

		ca, cb := ra[p.i], rb[p.j]
		switch {
		case ca == '*' && cb == '*':
			// Both consuming the same character leaves the state unchanged;
			// the epsilon moves above already cover progress.
		case ca == '*':
			// Star consumes whatever cb requires.
			stack = append(stack, pos{p.i, p.j + 1})
		case cb == '*':
			stack = append(stack, pos{p.i + 1, p.j})
		case ca == '?' || cb == '?' || ca == cb:
			stack = append(stack, pos{p.i + 1, p.j + 1})
		}
	}
	return false
}

// AnyOverlap reports whether any pattern in as overlaps any pattern in bs.
func AnyOverlap(as, bs []string) bool {
	for _, a := range as {
		for _, b := range bs {
			if Overlap(a, b) {
				return true
			}
		}
	}
	return false
}
