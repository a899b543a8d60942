// Package fnmatch provides Unix shell style wildcard matching for the
// file and directory name exclusions a transfer tool is given (robocopy
// /XF and /XD, rsync --exclude without slashes).
//
// Patterns: "*" matches everything, including path separators; "?"
// matches any single character; "[seq]" matches any character in seq and
// "[!seq]" any character not in seq.
//
// Windows tools compare names case-insensitively, so patterns can be
// compiled with case folding.
package fnmatch

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Pattern is a compiled wildcard pattern.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

type cacheKey struct {
	pattern string
	fold    bool
}

// patternCache caches compiled regular expressions for performance
var patternCache = sync.Map{}

// Compile compiles pattern. With fold set, matching ignores case.
func Compile(pattern string, fold bool) (*Pattern, error) {
	key := cacheKey{pattern: pattern, fold: fold}
	if cached, ok := patternCache.Load(key); ok {
		return cached.(*Pattern), nil
	}

	expr := translate(pattern)
	if fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}

	p := &Pattern{raw: pattern, re: re}
	patternCache.Store(key, p)
	return p, nil
}

// CompileAll compiles every pattern, stopping at the first invalid one.
func CompileAll(patterns []string, fold bool) ([]*Pattern, error) {
	compiled := make([]*Pattern, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := Compile(pattern, fold)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}

// match tests whether name matches the shell pattern, case-sensitively.
func match(pattern, name string) (bool, error) {
	p, err := Compile(pattern, false)
	if err != nil {
		return false, err
	}
	return p.Match(name), nil
}

// Match reports whether name matches p.
func (p *Pattern) Match(name string) bool {
	return p.re.MatchString(name)
}

func (p *Pattern) String() string {
	return p.raw
}

// MatchAny reports whether name matches at least one of patterns.
func MatchAny(patterns []*Pattern, name string) bool {
	for _, p := range patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// translate converts a shell pattern to a regular expression string.
func translate(pattern string) string {
	var result strings.Builder
	result.WriteString("(?s:^")

	i := 0
	n := len(pattern)

	for i < n {
		c := pattern[i]
		i++

		switch c {
		case '*':
			for i < n && pattern[i] == '*' {
				i++
			}
			result.WriteString(".*")

		case '?':
			result.WriteByte('.')

		case '[':
			j := i
			if j < n && pattern[j] == '!' {
				j++
			}
			// ']' directly after '[' or '[!' is literal
			if j < n && pattern[j] == ']' {
				j++
			}
			for j < n && pattern[j] != ']' {
				j++
			}

			if j >= n {
				// unterminated class: literal '['
				result.WriteString("\\[")
				continue
			}

			class := pattern[i:j]
			i = j + 1

			switch {
			case class == "":
				// Go's regexp has no (?!), an empty class never matches
				result.WriteString("[^\\x00-\\x{10FFFF}]")
			case class == "!":
				result.WriteByte('.')
			default:
				result.WriteByte('[')
				if class[0] == '!' {
					result.WriteByte('^')
					class = class[1:]
				}
				result.WriteString(escapeForCharClass(class))
				result.WriteByte(']')
			}

		default:
			result.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	result.WriteString("$)")
	return result.String()
}

// escapeForCharClass escapes special characters within a character class.
// Hyphens are left alone so ranges keep working.
func escapeForCharClass(s string) string {
	var result strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', ']', '[', '^':
			result.WriteByte('\\')
		}
		result.WriteByte(c)
	}
	return result.String()
}
