// Package ignore compiles gitignore-style exclusion manifests into
// Matchers usable as walker.Predicate values: a rule set rooted at a
// base directory, tested against absolute paths relative to that base.
package ignore

import (
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the on-disk name of a per-directory ignore manifest.
// A directory may carry one of these; its rules apply only to that
// directory's own subtree (see walker.Walk).
const IgnoreFileName = ".gitignore"

// Matcher tests absolute paths against a compiled rule set rooted at a
// base directory. It is the packager's exclusion predicate: a function
// from path to bool, closed over the base it was compiled against.
//
// Matching applies gitignore's last-rule-wins semantics: later rules
// override earlier ones, and a negated rule (!) can un-exclude a path
// an earlier rule excluded.
type Matcher struct {
	rules []rule
	base  string
}

// FromPatterns compiles a caller-supplied pattern list rooted at base.
// Patterns are interpreted with gitwildmatch semantics, matching against
// the path relative to base.
func FromPatterns(base string, patterns []string) (*Matcher, error) {
	rules, err := scanRules(strings.NewReader(strings.Join(patterns, "\n")))
	if err != nil {
		return nil, err
	}
	return &Matcher{rules: rules, base: base}, nil
}

// FromIgnoreFile compiles the ignore manifest at base/IgnoreFileName, if
// one exists. ok is false (with a nil Matcher and nil error) when no
// such file is present.
func FromIgnoreFile(base string) (m *Matcher, ok bool, err error) {
	path := filepath.Join(base, IgnoreFileName)
	f, openErr := os.Open(path) //nolint:gosec // base is walker-discovered, not attacker-controlled
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return nil, false, nil
		}
		return nil, false, openErr
	}
	defer func() { _ = f.Close() }()

	rules, err := scanRules(f)
	if err != nil {
		return nil, false, err
	}
	return &Matcher{rules: rules, base: base}, true, nil
}

// Match reports whether absPath (which must lie under the matcher's
// base) is excluded.
func (m *Matcher) Match(absPath string, isDir bool) bool {
	rel, err := filepath.Rel(m.base, absPath)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	excluded := false
	for _, r := range m.rules {
		if r.match(rel, isDir) {
			excluded = !r.negate
		}
	}
	return excluded
}
