// Package searchpath is a Go-native stand-in for Python's dynamic
// sys.path: an explicit, mutex-guarded ordered list of directories that
// ensure_setup splices fetched package directories onto. Go has no
// equivalent of a process-wide import search path, so this is exposed
// for worker-launcher glue (out of scope for this module) to consult
// when constructing a subprocess's own search configuration.
package searchpath

import "sync"

// List is an ordered, concurrency-safe collection of directories.
type List struct {
	mu    sync.Mutex
	paths []string
}

// New returns an empty List.
func New() *List {
	return &List{}
}

// Prepend inserts dir at the head of the list, mirroring
// sys.path.insert(0, dir).
func (l *List) Prepend(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append([]string{dir}, l.paths...)
}

// Snapshot returns a copy of the current ordering.
func (l *List) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.paths))
	copy(out, l.paths)
	return out
}
