package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ray-project/runtimeenv-go/internal/blobstore"
	"github.com/ray-project/runtimeenv-go/internal/cache"
	"github.com/ray-project/runtimeenv-go/internal/ignore"
	"github.com/ray-project/runtimeenv-go/internal/walker"
)

func openBlobStore() (*blobstore.Client, error) {
	backend, err := blobstore.NewFSBackend(blobRoot)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return blobstore.New(backend), nil
}

func openCache() *cache.Cache {
	return cache.New(cacheRoot)
}

// loadIgnoreFile compiles an arbitrary ignore manifest (not necessarily
// named .gitignore) rooted at base, for use alongside the nested
// .gitignore files the walker discovers on its own.
func loadIgnoreFile(path, base string) (walker.Predicate, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is a user-supplied flag
	if err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	m, err := ignore.FromPatterns(base, strings.Split(string(content), "\n"))
	if err != nil {
		return nil, fmt.Errorf("compile ignore patterns: %w", err)
	}
	return m, nil
}
