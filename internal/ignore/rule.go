package ignore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// rule is one compiled line of an ignore manifest: a glob broken into
// path segments, plus the three modifiers gitwildmatch syntax allows.
// "**" is kept as its own segment rather than expanded, so matching
// can treat it specially (zero or more path segments) instead of
// special-casing leading/trailing/middle placement the way a
// string-based matcher would have to.
type rule struct {
	text     string // source line, for diagnostics
	segments []string
	negate   bool // ! prefix: a later match by this rule un-excludes
	anchored bool // rooted at the manifest's base, not matchable at any depth
	dirOnly  bool // trailing / : only matches directories
}

var errEmptyRule = errors.New("ignore: empty pattern")

// compileRule parses one non-blank, non-comment manifest line.
func compileRule(raw string) (rule, error) {
	if raw == "" {
		return rule{}, errEmptyRule
	}

	negate := strings.HasPrefix(raw, "!") && !strings.HasPrefix(raw, `\!`)
	work := raw
	if negate {
		work = work[1:]
	}
	work = unescape(work)

	dirOnly := strings.HasSuffix(work, "/")
	if dirOnly {
		work = strings.TrimSuffix(work, "/")
	}

	anchored := strings.HasPrefix(work, "/")
	switch {
	case anchored:
		work = strings.TrimPrefix(work, "/")
	case strings.Contains(work, "/") && !strings.HasPrefix(work, "**"):
		// a slash anywhere but the leading "**" implicitly roots the
		// pattern, same as gitignore.
		anchored = true
	}

	if err := validateGlob(work); err != nil {
		return rule{}, err
	}

	return rule{
		text:     raw,
		segments: strings.Split(work, "/"),
		negate:   negate,
		anchored: anchored,
		dirOnly:  dirOnly,
	}, nil
}

// unescape turns the three gitignore escape sequences (\#, \!, \\)
// into their literal characters. A backslash before anything else is
// left untouched.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '#', '!', '\\':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// validateGlob rejects a pattern filepath.Match would reject, once its
// "**" segments are collapsed to ordinary wildcards for the check.
func validateGlob(glob string) error {
	probe := strings.ReplaceAll(glob, "**", "*")
	if _, err := filepath.Match(probe, "probe"); err != nil {
		return fmt.Errorf("ignore: invalid pattern: %w", err)
	}
	return nil
}

// match reports whether path (slash-separated, relative to the
// manifest's base) is matched by this rule.
func (r rule) match(path string, isDir bool) bool {
	if path == "" {
		return false
	}
	if r.dirOnly && !isDir {
		return false
	}

	pathSegs := strings.Split(path, "/")
	if r.anchored {
		return matchSegments(r.segments, pathSegs)
	}

	// unanchored: the pattern may match rooted at any depth of path.
	for start := 0; start <= len(pathSegs); start++ {
		if matchSegments(r.segments, pathSegs[start:]) {
			return true
		}
	}
	return false
}

// matchSegments recursively matches pattern segments against path
// segments. A "**" segment consumes zero or more path segments before
// the remainder of the pattern resumes — the single rule gitwildmatch
// needs for leading, trailing, middle, and doubled "**" placement
// alike, so no special-casing by position is required.
func matchSegments(pat, path []string) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}

	if pat[0] == "**" {
		if matchSegments(pat[1:], path) {
			return true
		}
		return len(path) > 0 && matchSegments(pat, path[1:])
	}

	if len(path) == 0 || !matchGlob(pat[0], path[0]) {
		return false
	}
	return matchSegments(pat[1:], path[1:])
}

// matchGlob matches a single path segment against a single pattern
// segment, translating gitignore's "!" character-class negation to
// the "^" filepath.Match expects.
func matchGlob(pattern, name string) bool {
	if pattern == "" || name == "" {
		return pattern == name
	}
	matched, err := filepath.Match(negateCharClass(pattern), name)
	return err == nil && matched
}

func negateCharClass(pattern string) string {
	if !strings.ContainsRune(pattern, '[') {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	inClass, atOpen := false, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '[' && !inClass:
			inClass, atOpen = true, true
			b.WriteByte(c)
		case inClass && atOpen && c == '!':
			b.WriteByte('^')
			atOpen = false
		case inClass && c == ']':
			inClass = false
			b.WriteByte(c)
		default:
			atOpen = false
			b.WriteByte(c)
		}
	}
	return b.String()
}
