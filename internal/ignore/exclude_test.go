package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromPatterns(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m, err := FromPatterns(base, []string{"*.log", "build/"})
	if err != nil {
		t.Fatalf("FromPatterns() error = %v", err)
	}

	if !m.Match(filepath.Join(base, "debug.log"), false) {
		t.Error("expected debug.log to be excluded")
	}
	if !m.Match(filepath.Join(base, "build"), true) {
		t.Error("expected build/ directory to be excluded")
	}
	if m.Match(filepath.Join(base, "main.go"), false) {
		t.Error("expected main.go to be retained")
	}
}

func TestFromIgnoreFile(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		if err := os.WriteFile(filepath.Join(base, IgnoreFileName), []byte("secret.txt\n"), 0o600); err != nil {
			t.Fatalf("write ignore file: %v", err)
		}

		m, ok, err := FromIgnoreFile(base)
		if err != nil {
			t.Fatalf("FromIgnoreFile() error = %v", err)
		}
		if !ok {
			t.Fatal("FromIgnoreFile() expected ok=true")
		}
		if !m.Match(filepath.Join(base, "secret.txt"), false) {
			t.Error("expected secret.txt to be excluded")
		}
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		m, ok, err := FromIgnoreFile(base)
		if err != nil {
			t.Fatalf("FromIgnoreFile() error = %v", err)
		}
		if ok || m != nil {
			t.Fatal("FromIgnoreFile() expected ok=false, nil matcher when no ignore file present")
		}
	})
}

func TestMatcherNegationUnexcludes(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m, err := FromPatterns(base, []string{"*.pyc", "!keep.pyc"})
	if err != nil {
		t.Fatalf("FromPatterns() error = %v", err)
	}

	if !m.Match(filepath.Join(base, "module.pyc"), false) {
		t.Error("expected module.pyc to be excluded")
	}
	if m.Match(filepath.Join(base, "keep.pyc"), false) {
		t.Error("expected keep.pyc to survive the negation rule")
	}
}

func TestMatcherLastRuleWins(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	// a later blanket re-exclusion should override an earlier negation,
	// exactly as the most recently read line in a real .gitignore would.
	m, err := FromPatterns(base, []string{"__pycache__/", "!__pycache__/", "__pycache__/"})
	if err != nil {
		t.Fatalf("FromPatterns() error = %v", err)
	}

	if !m.Match(filepath.Join(base, "__pycache__"), true) {
		t.Error("expected the final rule to re-exclude __pycache__")
	}
}

func TestMatcherDependencyDirectories(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m, err := FromPatterns(base, []string{"venv/", "node_modules/", "*.egg-info"})
	if err != nil {
		t.Fatalf("FromPatterns() error = %v", err)
	}

	excluded := []struct {
		path  string
		isDir bool
	}{
		{"venv", true},
		{"node_modules", true},
		{"mypkg.egg-info", false},
	}
	for _, c := range excluded {
		if !m.Match(filepath.Join(base, c.path), c.isDir) {
			t.Errorf("expected %s to be excluded", c.path)
		}
	}

	if m.Match(filepath.Join(base, "main.py"), false) {
		t.Error("expected main.py to be retained")
	}
}

func TestMatcherNestedSubtree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, IgnoreFileName), []byte("secret.txt\n"), 0o600); err != nil {
		t.Fatalf("write nested ignore file: %v", err)
	}

	m, ok, err := FromIgnoreFile(sub)
	if err != nil || !ok {
		t.Fatalf("FromIgnoreFile(sub) error = %v, ok = %v", err, ok)
	}

	// the nested ignore file's predicate is rooted at sub and only
	// handles paths under sub (see Match); keeping it away from a
	// sibling file under root with the same basename is the walker's
	// job, since it consults this matcher only inside sub's subtree.
	if !m.Match(filepath.Join(sub, "secret.txt"), false) {
		t.Error("expected sub/secret.txt to be excluded")
	}
}
