// Package hash computes the content-addressed digest that names a
// package: a 128-bit value folded, per retained filesystem entry, from
// an MD5 of that entry's path plus (for files) its chunked contents.
// The fold is a bitwise XOR, which is commutative and associative, so
// the digest is independent of the order the walker visits entries in.
package hash

import (
	"context"
	"crypto/md5" //nolint:gosec // content digest, not a security boundary; fixed 128-bit size is the point
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ray-project/runtimeenv-go/internal/walker"
)

// chunkSize is the minimum read granularity for file content hashing.
// Chunks must be at least 1 MiB; the exact value is not observable in
// the resulting digest.
const chunkSize = 1 << 20 // 1 MiB

// largeFileThreshold triggers a non-fatal advisory log, not a hashing
// behavior change.
const largeFileThreshold = 10 << 20 // 10 MiB

// Size is a 128-bit content digest.
type Size = [md5.Size]byte

// Digest is the folded tree digest produced by HashTree.
type Digest struct {
	bytes    Size
	nonEmpty bool
}

// IsZero reports whether the digest folded in zero entries, i.e. the
// root itself was excluded. An empty but retained root is not zero: it
// contributes the hash of its own path.
func (d Digest) IsZero() bool {
	return !d.nonEmpty
}

// Hex returns the lowercase hex encoding of the digest bytes.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.bytes[:])
}

// PackageName returns the `_ray_pkg_<hex>.zip` name for this digest,
// or "" when the digest is zero.
func (d Digest) PackageName() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("_ray_pkg_%s.zip", d.Hex())
}

func (d *Digest) fold(entry Size) {
	for i := range d.bytes {
		d.bytes[i] ^= entry[i]
	}
	d.nonEmpty = true
}

// Combine XOR-folds several digests into one, e.g. to hash a working
// directory together with additional module directories as a single
// package.
func Combine(digests ...Digest) Digest {
	var out Digest
	for _, d := range digests {
		if d.IsZero() {
			continue
		}
		out.fold(d.bytes)
	}
	return out
}

// Logger receives non-fatal large-file advisories. A nil Logger
// disables advisory logging.
type Logger interface {
	Warnf(format string, args ...any)
}

// Options configures HashTree.
type Options struct {
	// Exclude lists predicates, e.g. compiled ignore matchers, applied
	// on top of any nested .gitignore files the walker discovers.
	Exclude []walker.Predicate
	// Logger receives large-file advisories. Defaults to
	// charmbracelet/log's package logger when nil.
	Logger Logger
}

// HashTree walks root and folds a tree digest over every retained
// entry. relativeBase is the directory entry paths are hashed relative
// to (the working directory for a working-dir tree, or a module
// directory's parent for a module tree — see internal/archive, which
// shares this convention).
func HashTree(ctx context.Context, root, relativeBase string, opts Options) (Digest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var digest Digest
	err := walker.Walk(ctx, root, opts.Exclude, func(e walker.Entry) error {
		if e.IsDir && e.HasChildren {
			// non-empty directories contribute nothing
			// beyond their files.
			return nil
		}

		rel, relErr := filepath.Rel(relativeBase, e.AbsPath)
		if relErr != nil {
			return fmt.Errorf("relativize %s: %w", e.AbsPath, relErr)
		}
		rel = filepath.ToSlash(rel)

		entryDigest, hashErr := hashEntry(e, rel, logger)
		if hashErr != nil {
			return hashErr
		}
		digest.fold(entryDigest)
		return nil
	})
	if err != nil {
		return Digest{}, err
	}
	return digest, nil
}

func hashEntry(e walker.Entry, rel string, logger Logger) (Size, error) {
	h := md5.New() //nolint:gosec // see package doc
	if _, err := io.WriteString(h, rel); err != nil {
		return Size{}, err
	}

	if e.IsDir {
		// empty directory: path only.
		var out Size
		copy(out[:], h.Sum(nil))
		return out, nil
	}

	if e.Info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(e.AbsPath)
		if err != nil {
			return Size{}, fmt.Errorf("readlink %s: %w", e.AbsPath, err)
		}
		if _, err := io.WriteString(h, target); err != nil {
			return Size{}, err
		}
		var out Size
		copy(out[:], h.Sum(nil))
		return out, nil
	}

	if e.Info.Size() > largeFileThreshold {
		logger.Warnf("hashing large file %s (%d bytes)", e.AbsPath, e.Info.Size())
	}

	f, err := os.Open(e.AbsPath) //nolint:gosec // absPath is walker-derived, not user-controlled input
	if err != nil {
		return Size{}, fmt.Errorf("open %s: %w", e.AbsPath, err)
	}
	defer f.Close() //nolint:errcheck // read-only fd, nothing to recover

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Size{}, fmt.Errorf("read %s: %w", e.AbsPath, err)
	}

	var out Size
	copy(out[:], h.Sum(nil))
	return out, nil
}
