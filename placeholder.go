package ygggo_mysqlpool

import "strings"

// countPlaceholders counts positional ? markers that the driver would bind.
// Markers inside quoted strings, quoted identifiers and comments are ignored.
// Very simple scanner: it does not understand every MySQL lexical corner, only
// the ones that legitimately contain a literal '?'.
func countPlaceholders(query string) int {
	n := 0
	for i := 0; i < len(query); i++ {
		switch ch := query[i]; ch {
		case '\'', '"', '`':
			i = skipQuoted(query, i, ch)
		case '#':
			i = skipLine(query, i)
		case '-':
			// "-- " starts a comment; "--1" is arithmetic
			if i+2 < len(query) && query[i+1] == '-' && isSpace(query[i+2]) {
				i = skipLine(query, i)
			} else if i+2 == len(query) && query[i+1] == '-' {
				i = len(query)
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				// /*! ... */ and /*M! ... */ bodies are executed by the server
				if rest := query[i+2:]; strings.HasPrefix(rest, "!") || strings.HasPrefix(rest, "M!") {
					i += 2
					continue
				}
				end := strings.Index(query[i+2:], "*/")
				if end < 0 { return n }
				i += end + 3
			}
		case '?':
			n++
		}
	}
	return n
}

// skipQuoted returns the index of the closing quote, honoring doubled quotes and
// backslash escapes (the latter not inside backticks).
func skipQuoted(s string, start int, quote byte) int {
	for j := start + 1; j < len(s); j++ {
		c := s[j]
		if c == '\\' && quote != '`' {
			j++
			continue
		}
		if c == quote {
			if j+1 < len(s) && s[j+1] == quote {
				j++
				continue
			}
			return j
		}
	}
	return len(s)
}

func skipLine(s string, start int) int {
	for j := start; j < len(s); j++ {
		if s[j] == '\n' { return j }
	}
	return len(s)
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
