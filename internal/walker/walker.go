// Package walker implements the depth-first filesystem traversal shared
// by the content hasher and the archiver: it invokes a handler for
// every retained entry while maintaining a stack of active exclusion
// predicates, so that a nested ignore-file governs only its own
// subtree.
//
// Each directory's children are processed on bounded worker
// goroutines; when every worker slot is taken, a child is walked on
// the calling goroutine instead. Instead of a single shared, mutated predicate stack,
// this walker threads an explicit, per-call copy of the stack down the
// recursion — sibling goroutines never see each other's pushes, so
// there is no need for a lock around the stack itself.
package walker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/ray-project/runtimeenv-go/internal/ignore"
)

var (
	ErrRootNotExist     = errors.New("walker: root does not exist")
	ErrRootNotDirectory = errors.New("walker: root is not a directory")
)

// Predicate reports whether absPath is excluded. *ignore.Matcher
// satisfies this.
type Predicate interface {
	Match(absPath string, isDir bool) bool
}

// Entry describes a single retained filesystem entry passed to a
// Handler.
type Entry struct {
	AbsPath string
	Info    os.FileInfo
	IsDir   bool
	// HasChildren reports, for a directory entry, whether it has at
	// least one retained (non-excluded) immediate child. Always false
	// for file entries.
	HasChildren bool
}

// Handler is invoked once per retained entry. A non-nil error aborts
// the entire walk: handler errors are fatal.
type Handler func(Entry) error

type walker struct {
	handler    Handler
	sem        chan struct{}
	onError    func(absPath string, err error)
	mu         sync.Mutex // guards handler calls when serialized is set
	serialized bool
}

// Option configures a Walk call.
type Option func(*walker)

// WithConcurrency bounds the number of goroutines used to process
// sibling entries. n <= 0 defaults to runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(w *walker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

// WithErrorLogger installs a callback invoked with the offending path
// immediately before a handler error aborts the walk.
func WithErrorLogger(f func(absPath string, err error)) Option {
	return func(w *walker) { w.onError = f }
}

// WithSerializedHandler forces handler invocations to be mutually
// exclusive even though sibling entries are still discovered
// concurrently. Use this when the handler itself is not safe for
// concurrent calls, e.g. writing into a single zip.Writer.
func WithSerializedHandler() Option {
	return func(w *walker) { w.serialized = true }
}

// Walk traverses root depth-first, consulting predicates (plus any
// ignore files discovered along the way) to decide which entries to
// retain, and invokes handler once per retained entry.
func Walk(ctx context.Context, root string, predicates []Predicate, handler Handler, opts ...Option) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrRootNotExist
		}
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return ErrRootNotDirectory
	}

	w := &walker{handler: handler}
	for _, opt := range opts {
		opt(w)
	}
	if w.sem == nil {
		w.sem = make(chan struct{}, runtime.NumCPU())
	}

	return w.walk(ctx, root, predicates)
}

// walk processes a single filesystem entry: match predicates, decide
// whether it's excluded, recurse into directories, and invoke the
// handler.
func (w *walker) walk(ctx context.Context, absPath string, predicates []Predicate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("lstat %s: %w", absPath, err)
	}
	isDir := info.IsDir()

	// step 1: probe for a nested ignore file and push a *copy* of the
	// stack carrying it. Siblings discovered concurrently never see
	// this push, so subtree-scoping holds without a shared mutable
	// stack.
	active := predicates
	if isDir {
		m, ok, ferr := ignore.FromIgnoreFile(absPath)
		if ferr != nil {
			return fmt.Errorf("load ignore file in %s: %w", absPath, ferr)
		}
		if ok {
			active = append(append([]Predicate{}, predicates...), m)
		}
	}

	// step 2: skip if any active predicate matches this path.
	for _, p := range active {
		if p.Match(absPath, isDir) {
			return nil
		}
	}

	if !isDir {
		if err := w.invoke(Entry{AbsPath: absPath, Info: info, IsDir: false}); err != nil {
			w.logError(absPath, err)
			return err
		}
		return nil
	}

	children, err := w.retainedChildren(absPath, active)
	if err != nil {
		return err
	}

	if err := w.invoke(Entry{AbsPath: absPath, Info: info, IsDir: true, HasChildren: len(children) > 0}); err != nil {
		w.logError(absPath, err)
		return err
	}

	return w.walkChildren(ctx, children, active)
}

// retainedChildren lists absPath's immediate children and filters out
// anything the active predicate stack excludes, without descending
// into them. This look-ahead is what lets the hasher distinguish a
// directory with no retained children from one with some.
func (w *walker) retainedChildren(absPath string, active []Predicate) ([]string, error) {
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", absPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if de.Name() == ignore.IgnoreFileName {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	var retained []string
	for _, name := range names {
		childPath := filepath.Join(absPath, name)
		childInfo, err := os.Lstat(childPath)
		if err != nil {
			return nil, fmt.Errorf("lstat %s: %w", childPath, err)
		}
		excluded := false
		for _, p := range active {
			if p.Match(childPath, childInfo.IsDir()) {
				excluded = true
				break
			}
		}
		if !excluded {
			retained = append(retained, childPath)
		}
	}
	return retained, nil
}

func (w *walker) walkChildren(ctx context.Context, children []string, active []Predicate) error {
	if len(children) == 0 {
		return nil
	}

	errs := make([]error, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		select {
		case w.sem <- struct{}{}:
			wg.Add(1)
			go func(idx int, childPath string) {
				defer wg.Done()
				defer func() { <-w.sem }()
				errs[idx] = w.walk(ctx, childPath, active)
			}(i, child)
		default:
			// no free worker slot: walk the child on this goroutine
			// instead of blocking while an ancestor holds a slot.
			errs[i] = w.walk(ctx, child, active)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) invoke(e Entry) error {
	if w.serialized {
		w.mu.Lock()
		defer w.mu.Unlock()
	}
	return w.handler(e)
}

func (w *walker) logError(absPath string, err error) {
	if w.onError != nil {
		w.onError(absPath, err)
	}
}
