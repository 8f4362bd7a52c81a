package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/ray-project/runtimeenv-go/internal/ignore"
)

func collect(t *testing.T, root string, predicates []Predicate, opts ...Option) []Entry {
	t.Helper()
	var mu sync.Mutex
	var entries []Entry
	err := Walk(context.Background(), root, predicates, func(e Entry) error {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
		return nil
	}, opts...)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return entries
}

func names(entries []Entry, root string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		rel, _ := filepath.Rel(root, e.AbsPath)
		out[i] = filepath.ToSlash(rel)
	}
	sort.Strings(out)
	return out
}

func TestWalkRootValidation(t *testing.T) {
	t.Parallel()

	t.Run("root not exist returns error", func(t *testing.T) {
		t.Parallel()

		err := Walk(context.Background(), "/nonexistent/path/that/does/not/exist", nil, func(Entry) error { return nil })
		if !errors.Is(err, ErrRootNotExist) {
			t.Errorf("error = %v, want ErrRootNotExist", err)
		}
	})

	t.Run("root is file returns error", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		filePath := filepath.Join(root, "file.txt")
		writeFile(t, filePath, "content")

		err := Walk(context.Background(), filePath, nil, func(Entry) error { return nil })
		if !errors.Is(err, ErrRootNotDirectory) {
			t.Errorf("error = %v, want ErrRootNotDirectory", err)
		}
	})
}

func TestWalkBasic(t *testing.T) {
	t.Parallel()

	t.Run("empty directory still invokes handler with no children", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		entries := collect(t, root, nil)
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1 (root itself)", len(entries))
		}
		if !entries[0].IsDir || entries[0].HasChildren {
			t.Errorf("root entry = %+v, want dir with no children", entries[0])
		}
	})

	t.Run("single file", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "hello.txt"), "hello world")

		entries := collect(t, root, nil)
		got := names(entries, root)
		want := []string{".", "hello.txt"}
		if !equalSlices(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}
	})

	t.Run("nested directories", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "root.txt"), "root")
		writeFile(t, filepath.Join(root, "sub", "nested.txt"), "nested")
		writeFile(t, filepath.Join(root, "sub", "deep", "deeper.txt"), "deep")

		entries := collect(t, root, nil)
		got := names(entries, root)
		want := []string{".", "root.txt", "sub", "sub/deep", "sub/deep/deeper.txt", "sub/nested.txt"}
		if !equalSlices(got, want) {
			t.Errorf("entries = %v, want %v", got, want)
		}

		for _, e := range entries {
			if filepath.Base(e.AbsPath) == "sub" {
				if !e.HasChildren {
					t.Error("sub should report HasChildren = true")
				}
			}
		}
	})

	t.Run("empty subdirectory reports no children", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		mkdir(t, filepath.Join(root, "empty"))
		writeFile(t, filepath.Join(root, "file.txt"), "content")

		entries := collect(t, root, nil)
		for _, e := range entries {
			if filepath.Base(e.AbsPath) == "empty" {
				if !e.IsDir || e.HasChildren {
					t.Errorf("empty dir entry = %+v, want dir with no children", e)
				}
			}
		}
	})
}

func TestWalkIgnorePatterns(t *testing.T) {
	t.Parallel()

	t.Run("caller-supplied predicate excludes matches", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "keep.txt"), "keep")
		writeFile(t, filepath.Join(root, "ignore.log"), "ignore")

		m, err := ignore.FromPatterns(root, []string{"*.log"})
		if err != nil {
			t.Fatalf("FromPatterns() error = %v", err)
		}

		entries := collect(t, root, []Predicate{m})
		for _, e := range entries {
			if filepath.Base(e.AbsPath) == "ignore.log" {
				t.Error("ignored file should not be visited")
			}
		}
	})

	t.Run("ignores directories", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "keep.txt"), "keep")
		writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "ignored")

		m, err := ignore.FromPatterns(root, []string{"node_modules/"})
		if err != nil {
			t.Fatalf("FromPatterns() error = %v", err)
		}

		entries := collect(t, root, []Predicate{m})
		for _, e := range entries {
			if filepath.Base(e.AbsPath) == "node_modules" {
				t.Error("ignored directory should not be visited")
			}
			if filepath.Base(e.AbsPath) == "index.js" {
				t.Error("file under ignored directory should not be visited")
			}
		}
	})

	t.Run("nested gitignore governs only its own subtree", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "secret.txt"), "root secret, kept")
		writeFile(t, filepath.Join(root, "sub", "secret.txt"), "sub secret, excluded")
		writeFile(t, filepath.Join(root, ignore.IgnoreFileName), "")
		mkdir(t, filepath.Join(root, "sub"))
		writeFile(t, filepath.Join(root, "sub", ignore.IgnoreFileName), "secret.txt\n")

		entries := collect(t, root, nil)

		var rootSecretSeen, subSecretSeen bool
		for _, e := range entries {
			if e.AbsPath == filepath.Join(root, "secret.txt") {
				rootSecretSeen = true
			}
			if e.AbsPath == filepath.Join(root, "sub", "secret.txt") {
				subSecretSeen = true
			}
		}
		if !rootSecretSeen {
			t.Error("root secret.txt should be visited (outside sub's ignore scope)")
		}
		if subSecretSeen {
			t.Error("sub/secret.txt should be excluded by sub's own gitignore")
		}
	})

	t.Run("negation patterns work", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "debug.log"), "debug")
		writeFile(t, filepath.Join(root, "important.log"), "important")

		m, err := ignore.FromPatterns(root, []string{"*.log", "!important.log"})
		if err != nil {
			t.Fatalf("FromPatterns() error = %v", err)
		}

		entries := collect(t, root, []Predicate{m})
		var hasImportant, hasDebug bool
		for _, e := range entries {
			switch filepath.Base(e.AbsPath) {
			case "important.log":
				hasImportant = true
			case "debug.log":
				hasDebug = true
			}
		}
		if !hasImportant {
			t.Error("important.log should not be ignored (negation)")
		}
		if hasDebug {
			t.Error("debug.log should be ignored")
		}
	})
}

func TestWalkHandlerError(t *testing.T) {
	t.Parallel()

	t.Run("handler error aborts the walk and is returned", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "boom.txt"), "boom")

		sentinel := errors.New("handler failed")
		var loggedPath string
		err := Walk(context.Background(), root, nil, func(e Entry) error {
			if filepath.Base(e.AbsPath) == "boom.txt" {
				return sentinel
			}
			return nil
		}, WithSerializedHandler(), WithErrorLogger(func(p string, _ error) { loggedPath = p }))

		if !errors.Is(err, sentinel) {
			t.Errorf("Walk() error = %v, want sentinel", err)
		}
		if loggedPath == "" {
			t.Error("expected error logger to be invoked")
		}
	})
}

func TestWalkContext(t *testing.T) {
	t.Parallel()

	t.Run("respects a pre-cancelled context", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "file.txt"), "content")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Walk(ctx, root, nil, func(Entry) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Walk() error = %v, want context.Canceled", err)
		}
	})
}

func TestWalkDeterminism(t *testing.T) {
	t.Parallel()

	t.Run("same tree visited regardless of concurrency", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		for i := range 20 {
			writeFile(t, filepath.Join(root, string(rune('a'+i))+".txt"), "content")
		}

		entries1 := collect(t, root, nil, WithConcurrency(1))
		entries2 := collect(t, root, nil, WithConcurrency(8))

		got1 := names(entries1, root)
		got2 := names(entries2, root)
		if !equalSlices(got1, got2) {
			t.Errorf("visited sets differ: %v vs %v", got1, got2)
		}
	})
}

func TestWalkEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("unicode filenames", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "日本語.txt"), "japanese")
		writeFile(t, filepath.Join(root, "données.json"), "french")

		entries := collect(t, root, nil)
		if len(entries) != 3 {
			t.Errorf("got %d entries, want 3 (root + 2 files)", len(entries))
		}
	})

	t.Run("dotfiles included by default", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, ".hidden"), "hidden")
		writeFile(t, filepath.Join(root, ".config"), "config")

		entries := collect(t, root, nil)
		if len(entries) != 3 {
			t.Errorf("got %d entries, want 3 (root + 2 dotfiles)", len(entries))
		}
	})

	t.Run("symlink visited without following", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "target.txt"), "target content")
		writeSymlink(t, filepath.Join(root, "link.txt"), "target.txt")

		entries := collect(t, root, nil)
		var linkEntry *Entry
		for i := range entries {
			if filepath.Base(entries[i].AbsPath) == "link.txt" {
				linkEntry = &entries[i]
			}
		}
		if linkEntry == nil {
			t.Fatal("link.txt not visited")
		}
		if linkEntry.IsDir {
			t.Error("symlink to file should not be treated as a directory")
		}
	})
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("MkdirAll(%q) error = %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%q) error = %v", path, err)
	}
}

func writeSymlink(t *testing.T, path, target string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("MkdirAll(%q) error = %v", dir, err)
	}
	if err := os.Symlink(target, path); err != nil {
		t.Fatalf("Symlink(%q -> %q) error = %v", path, target, err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o750); err != nil {
		t.Fatalf("MkdirAll(%q) error = %v", path, err)
	}
}
