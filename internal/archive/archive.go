// Package archive builds and extracts the zip archives this module
// distributes: a single working directory tree plus zero or more
// module directory trees, each walked and written with stable,
// forward-slash relative paths.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ray-project/runtimeenv-go/internal/walker"
)

// ErrIllegalEntryPath is returned by Extract when an archive entry's
// path would escape the destination directory (zip slip).
var ErrIllegalEntryPath = fmt.Errorf("archive: illegal entry path")

// ModuleDir is an additional code directory archived relative to its
// own parent, so that extracting the archive re-creates the module at
// its natural top-level name.
type ModuleDir struct {
	Path string
}

// Build walks workingDir and each of moduleDirs, via the walker
// package, and writes every retained entry into a single zip archive
// at outputPath. Entries from workingDir are stored relative to
// workingDir itself; entries from a module directory are stored
// relative to that module directory's parent, preserving the module's
// own directory name in the archive.
//
// Zip metadata (timestamps, entry order) is not guaranteed stable
// across runs; only the set of paths and their contents is.
func Build(ctx context.Context, workingDir string, moduleDirs []ModuleDir, exclude []walker.Predicate, outputPath string) error {
	out, err := os.Create(outputPath) //nolint:gosec // outputPath is caller-controlled, not user input
	if err != nil {
		return fmt.Errorf("create archive %s: %w", outputPath, err)
	}
	defer out.Close() //nolint:errcheck // zw.Close below is the operation that matters

	zw := zip.NewWriter(out)

	if workingDir != "" {
		if err := addTree(ctx, zw, workingDir, workingDir, exclude); err != nil {
			_ = zw.Close()
			return err
		}
	}
	for _, m := range moduleDirs {
		base := filepath.Dir(m.Path)
		if err := addTree(ctx, zw, m.Path, base, exclude); err != nil {
			_ = zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive %s: %w", outputPath, err)
	}
	return nil
}

// addTree walks root and writes every retained entry relative to base.
// zip.Writer is not safe for concurrent use, so the walker's handler
// invocations are serialized.
func addTree(ctx context.Context, zw *zip.Writer, root, base string, exclude []walker.Predicate) error {
	return walker.Walk(ctx, root, exclude, func(e walker.Entry) error {
		rel, err := filepath.Rel(base, e.AbsPath)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", e.AbsPath, err)
		}
		rel = filepath.ToSlash(rel)

		if e.IsDir {
			if e.HasChildren {
				return nil
			}
			_, err := zw.Create(rel + "/")
			return err
		}

		hdr, err := zip.FileInfoHeader(e.Info)
		if err != nil {
			return fmt.Errorf("build header for %s: %w", e.AbsPath, err)
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		f, err := os.Open(e.AbsPath) //nolint:gosec // absPath is walker-derived
		if err != nil {
			return fmt.Errorf("open %s: %w", e.AbsPath, err)
		}
		defer f.Close() //nolint:errcheck // read-only fd

		_, err = io.Copy(w, f)
		return err
	}, walker.WithSerializedHandler())
}

// Extract unpacks a zip archive at archivePath into destDir, creating
// destDir if necessary. Entry paths are validated to prevent zip slip,
// following the style of kind's extractTarball.
func Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close() //nolint:errcheck // read-only archive

	cleanDest := filepath.Clean(destDir)
	if err := os.MkdirAll(cleanDest, 0o750); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	for _, f := range r.File {
		targetPath := filepath.Join(cleanDest, f.Name)
		cleanTarget := filepath.Clean(targetPath)
		if cleanTarget != cleanDest && !strings.HasPrefix(cleanTarget, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrIllegalEntryPath, f.Name)
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(cleanTarget, 0o750); err != nil {
				return fmt.Errorf("create dir %s: %w", cleanTarget, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(cleanTarget), 0o750); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", cleanTarget, err)
		}

		if err := extractFile(f, cleanTarget); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, targetPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only entry

	out, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode()) //nolint:gosec // targetPath validated against zip slip above
	if err != nil {
		return fmt.Errorf("create %s: %w", targetPath, err)
	}
	defer out.Close() //nolint:errcheck // flushed by explicit Close below

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // entry sizes bounded by the 512MiB blob-store cap upstream
		return fmt.Errorf("write %s: %w", targetPath, err)
	}
	return out.Close()
}
