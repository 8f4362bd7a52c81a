// Package cache implements the local, per-host package cache: for a
// given package URI it maintains an unpacked directory plus a
// transient archive file, with cross-process mutual exclusion via an
// advisory file lock.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/ray-project/runtimeenv-go/internal/archive"
	"github.com/ray-project/runtimeenv-go/internal/blobstore"
	"github.com/ray-project/runtimeenv-go/internal/pkguri"
	"github.com/ray-project/runtimeenv-go/internal/rterrors"
)

// Cache manages a root directory holding one unpacked directory and
// one advisory lock per cached package.
type Cache struct {
	root   string
	logger *log.Logger
}

// New returns a Cache rooted at root. An empty root means unconfigured
// operations against it fail with CacheNotConfiguredError.
func New(root string) *Cache {
	return &Cache{root: root, logger: log.Default()}
}

// WithLogger overrides the package logger used for operational
// messages (cache hits, fetches).
func (c *Cache) WithLogger(l *log.Logger) *Cache {
	c.logger = l
	return c
}

func (c *Cache) unpackedDir(name string) string {
	return filepath.Join(c.root, name)
}

func (c *Cache) archivePath(name string) string {
	return c.unpackedDir(name) + ".zip"
}

func (c *Cache) lockPath(name string) string {
	return c.archivePath(name) + ".lock"
}

// Fetch retrieves the package named by uri, returning its unpacked
// directory. If the directory already exists locally it is returned
// immediately without consulting client. Otherwise bytes are pulled
// from client, written to the transient archive, extracted, and the
// archive is deleted.
//
// Fetch is serialized across processes on this host by an advisory
// lock on the archive's ".lock" sibling, held for the full
// fetch+extract; after release, other holders observe the unpacked
// directory already present and return immediately.
func (c *Cache) Fetch(ctx context.Context, uri string, client *blobstore.Client) (string, error) {
	if c.root == "" {
		return "", &rterrors.CacheNotConfiguredError{}
	}

	_, name, err := pkguri.Parse(uri)
	if err != nil {
		return "", err
	}

	dir := c.unpackedDir(name)
	if _, err := os.Stat(dir); err == nil {
		c.logger.Debugf("cache hit for %s at %s", uri, dir)
		return dir, nil
	}

	if err := os.MkdirAll(c.root, 0o750); err != nil {
		return "", fmt.Errorf("create cache root %s: %w", c.root, err)
	}

	fl := flock.New(c.lockPath(name))
	if err := fl.Lock(); err != nil {
		return "", fmt.Errorf("acquire lock for %s: %w", name, err)
	}
	defer fl.Unlock() //nolint:errcheck // advisory lock, stale release is harmless

	// re-check after acquiring the lock: another process may have
	// finished the fetch+extract while we waited.
	if _, err := os.Stat(dir); err == nil {
		c.logger.Debugf("cache hit for %s at %s", uri, dir)
		return dir, nil
	}

	data, ok, err := client.Get(ctx, uri)
	if err != nil {
		return "", &rterrors.FetchFailedError{URI: uri, Err: err}
	}
	if !ok {
		return "", &rterrors.FetchFailedError{URI: uri}
	}

	archivePath := c.archivePath(name)
	if err := os.WriteFile(archivePath, data, 0o600); err != nil {
		return "", fmt.Errorf("write archive %s: %w", archivePath, err)
	}

	if err := archive.Extract(archivePath, dir); err != nil {
		return "", fmt.Errorf("extract %s: %w", archivePath, err)
	}

	if err := os.Remove(archivePath); err != nil {
		c.logger.Warnf("failed to remove transient archive %s: %v", archivePath, err)
	}

	c.logger.Infof("fetched %s into %s", uri, dir)
	return dir, nil
}

// LocalArchivePath returns the path upload_if_missing checks for a
// pre-built archive before constructing one from scratch.
func (c *Cache) LocalArchivePath(name string) string {
	return c.archivePath(name)
}
