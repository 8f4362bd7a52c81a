// Package blobstore wraps a pluggable key/value backend with a
// payload cap and an initialization guard, and ships one concrete
// Backend: a filesystem-backed implementation using an atomic
// temp-file-plus-rename write pattern, usable as a local stand-in for
// a real shared object store.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ray-project/runtimeenv-go/internal/rterrors"
)

// MaxPayloadSize is the hard cap a Put must not meet or exceed.
const MaxPayloadSize = 512 << 20 // 512 MiB

// Backend is the opaque byte KV a Client wraps. Implementations are
// expected to be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Client enforces the payload cap and initialization guard on top of a
// Backend.
type Client struct {
	backend Backend
}

// New wraps backend in a Client. A nil backend produces a Client that
// is not Initialized.
func New(backend Backend) *Client {
	return &Client{backend: backend}
}

// Initialized reports whether the client has a backend wired in.
// Callers must assert this before any other operation.
func (c *Client) Initialized() bool {
	return c != nil && c.backend != nil
}

func (c *Client) requireInitialized() error {
	if !c.Initialized() {
		return &rterrors.BlobStoreNotInitializedError{}
	}
	return nil
}

// Get retrieves the bytes stored under key. ok is false when the key
// is absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, false, err
	}
	return c.backend.Get(ctx, key)
}

// Put stores value under key, failing with PayloadTooLargeError when
// value meets or exceeds MaxPayloadSize.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	if int64(len(value)) >= MaxPayloadSize {
		return &rterrors.PayloadTooLargeError{Size: int64(len(value)), Limit: MaxPayloadSize}
	}
	return c.backend.Put(ctx, key, value)
}

// Exists reports whether key is already present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.requireInitialized(); err != nil {
		return false, err
	}
	return c.backend.Exists(ctx, key)
}

// FSBackend is a filesystem-backed Backend. Keys are sanitized into
// single path components by replacing every '/' and ':' with '_', so
// that URI strings (which contain "://") are safe directory entries.
type FSBackend struct {
	root string
}

// NewFSBackend returns a Backend rooted at dir, creating it if
// necessary.
func NewFSBackend(dir string) (*FSBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blobstore root %s: %w", dir, err)
	}
	return &FSBackend{root: dir}, nil
}

func (b *FSBackend) path(key string) string {
	return filepath.Join(b.root, keyFileName(key))
}

func keyFileName(key string) string {
	// keys are package URIs like "gcs://_ray_pkg_<hex>.zip"; replacing
	// the scheme separator keeps the name filesystem-safe while
	// remaining legible for debugging.
	safe := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '/', ':':
			safe = append(safe, '_')
		default:
			safe = append(safe, key[i])
		}
	}
	return string(safe)
}

func (b *FSBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key)) //nolint:gosec // path is derived from a sanitized key, not raw user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

func (b *FSBackend) Put(_ context.Context, key string, value []byte) error {
	path := b.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create blobstore dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	_, writeErr := f.Write(value)
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", key, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place for %s: %w", key, err)
	}
	return nil
}

func (b *FSBackend) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}
