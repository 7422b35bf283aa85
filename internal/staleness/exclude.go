package staleness

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Excluded reports whether path matches any of the exclusion patterns.
//
// In a pattern with glob metacharacters, * matches any run of characters
// including the path separator and ? matches any single character, so
// "*/keep/*" excludes everything below a keep directory at any depth.
// Bracket classes work as in filepath.Match. The pattern must match the
// whole path or a trailing run of path elements, so
// "legacy-*/node_modules" works without anchoring. A plain pattern matches
// when it appears as a substring of the slash-normalised path. Malformed
// patterns match nothing.
func Excluded(p string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	norm := filepath.ToSlash(filepath.Clean(p))
	for _, raw := range patterns {
		pattern := strings.TrimSpace(filepath.ToSlash(raw))
		if pattern == "" {
			continue
		}

		if !hasMeta(pattern) {
			if strings.Contains(norm, pattern) {
				return true
			}
			continue
		}

		re, ok := globRegexp(pattern)
		if ok && matchSuffixes(norm, re) {
			return true
		}
	}
	return false
}

func matchSuffixes(p string, re *regexp.Regexp) bool {
	if re.MatchString(p) {
		return true
	}
	for i := 0; i < len(p); i++ {
		if p[i] == '/' && re.MatchString(p[i+1:]) {
			return true
		}
	}
	return false
}

// globRegexp translates a glob into an anchored regular expression.
func globRegexp(pattern string) (*regexp.Regexp, bool) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end <= 0 {
				return nil, false
			}
			class := pattern[i+1 : i+1+end]
			if class[0] == '!' || class[0] == '^' {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false
	}
	return re, true
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[`)
}
