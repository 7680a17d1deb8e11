package crawler

import (
	"bytes"
	"iter"
	"strings"
)

// cssURLToken is the token that opens every CSS reference, including the
// url() form of @import.
const cssURLToken = "url("

// ExtractCSSRefs returns the references found inside url(...) constructs of css.
//
// The scan is a small state machine run from the start of css on every
// iteration of the returned sequence, so ranging over it twice yields the
// same references:
//
//  1. find the next "url(" (case-insensitive)
//  2. skip one optional opening quote
//  3. capture up to the first ")" on the same line; a capture that reaches
//     a newline first is abandoned
//  4. drop one optional closing quote from the capture
//
// Captures starting with "data:" (inline content) or "http" (absolute,
// usually cross-origin) are not yielded. The query string and fragment are
// stripped from every yielded reference. An empty reference may be
// yielded; callers treat it as a skip.
func ExtractCSSRefs(css []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := css
		for {
			i := indexFold(rest, cssURLToken)
			if i < 0 {
				return
			}
			rest = rest[i+len(cssURLToken):]

			arg, n, ok := scanURLArgument(rest)
			if !ok {
				continue
			}
			rest = rest[n:]

			if strings.HasPrefix(arg, "data:") || strings.HasPrefix(arg, "http") {
				continue
			}
			if !yield(stripQueryAndFragment(arg)) {
				return
			}
		}
	}
}

// scanURLArgument reads the argument of a url( construct whose opening
// parenthesis has already been consumed. It returns the argument, the
// number of bytes consumed including the closing parenthesis, and false
// when no closing parenthesis appears before the end of the line.
func scanURLArgument(b []byte) (string, int, bool) {
	start := 0
	if len(b) > 0 && isQuote(b[0]) {
		start = 1
	}

	end := -1
	for j := start; j < len(b); j++ {
		if b[j] == '\n' {
			return "", 0, false
		}
		if b[j] == ')' {
			end = j
			break
		}
	}
	if end < 0 {
		return "", 0, false
	}

	arg := b[start:end]
	if len(arg) > 0 && isQuote(arg[len(arg)-1]) {
		arg = arg[:len(arg)-1]
	}
	return string(arg), end + 1, true
}

// stripQueryAndFragment cuts ref at the first '?' and then at the first '#'.
func stripQueryAndFragment(ref string) string {
	ref, _, _ = strings.Cut(ref, "?")
	ref, _, _ = strings.Cut(ref, "#")
	return ref
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"'
}

// indexFold returns the index of the first ASCII case-insensitive match of
// token (which must be lowercase) in b, or -1.
func indexFold(b []byte, token string) int {
	for i := 0; i+len(token) <= len(b); i++ {
		if bytes.EqualFold(b[i:i+len(token)], []byte(token)) {
			return i
		}
	}
	return -1
}
