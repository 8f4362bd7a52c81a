// Package orchestrator implements the three top-level flows that tie
// the packager together: computing a job's package URIs, publishing
// the corresponding archive, and fetching + splicing packages into a
// worker's module search path.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/ray-project/runtimeenv-go/internal/archive"
	"github.com/ray-project/runtimeenv-go/internal/blobstore"
	"github.com/ray-project/runtimeenv-go/internal/cache"
	"github.com/ray-project/runtimeenv-go/internal/hash"
	"github.com/ray-project/runtimeenv-go/internal/pkguri"
	"github.com/ray-project/runtimeenv-go/internal/searchpath"
	"github.com/ray-project/runtimeenv-go/internal/walker"
)

// Job is the minimal view of a driver's runtime-environment job this
// package needs: a working directory, additional module directories,
// a caller-supplied exclude list, and the package URI list that gets
// populated by RewriteURIs.
type Job struct {
	WorkingDir string
	ModuleDirs []string
	Exclude    []walker.Predicate
	URIs       []string
}

// RewriteURIs computes job's package URI list from its working
// directory and module directories, unless the job already carries
// one. A job with neither working_dir nor module dirs is left with an
// empty URI list.
func RewriteURIs(ctx context.Context, job *Job) error {
	if len(job.URIs) > 0 {
		return nil
	}
	if job.WorkingDir == "" && len(job.ModuleDirs) == 0 {
		return nil
	}

	digest, err := hashCombined(ctx, job)
	if err != nil {
		return err
	}
	name := digest.PackageName()
	if name == "" {
		return nil
	}

	job.URIs = []string{pkguri.Format(pkguri.System, name)}
	return nil
}

// hashCombined folds one digest over the working directory and every
// module directory, treating a job's package identity as the union of
// all of its directories.
func hashCombined(ctx context.Context, job *Job) (hash.Digest, error) {
	var digests []hash.Digest

	if job.WorkingDir != "" {
		d, err := hash.HashTree(ctx, job.WorkingDir, job.WorkingDir, hash.Options{Exclude: job.Exclude})
		if err != nil {
			return hash.Digest{}, err
		}
		digests = append(digests, d)
	}
	for _, dir := range job.ModuleDirs {
		d, err := hash.HashTree(ctx, dir, filepath.Dir(dir), hash.Options{Exclude: job.Exclude})
		if err != nil {
			return hash.Digest{}, err
		}
		digests = append(digests, d)
	}
	return hash.Combine(digests...), nil
}

// UploadIfMissing builds (if necessary) and pushes job's archive for
// each of its URIs, skipping any the blob store already has. Returns
// the number of bytes uploaded (0 if every URI was already present).
func UploadIfMissing(ctx context.Context, job *Job, client *blobstore.Client, localCache *cache.Cache) (int64, error) {
	var uploaded int64

	for _, uri := range job.URIs {
		_, name, err := pkguri.Parse(uri)
		if err != nil {
			return uploaded, err
		}

		exists, err := client.Exists(ctx, uri)
		if err != nil {
			return uploaded, err
		}
		if exists {
			continue
		}

		archivePath := localCache.LocalArchivePath(name)
		if _, err := os.Stat(archivePath); err != nil {
			if err := os.MkdirAll(filepath.Dir(archivePath), 0o750); err != nil {
				return uploaded, fmt.Errorf("create archive dir for %s: %w", uri, err)
			}
			if err := archive.Build(ctx, job.WorkingDir, moduleDirList(job.ModuleDirs), job.Exclude, archivePath); err != nil {
				return uploaded, fmt.Errorf("build archive for %s: %w", uri, err)
			}
		}

		data, err := os.ReadFile(archivePath) //nolint:gosec // archivePath is derived from the cache root, not raw user input
		if err != nil {
			return uploaded, fmt.Errorf("read archive %s: %w", archivePath, err)
		}
		if err := client.Put(ctx, uri, data); err != nil {
			return uploaded, err
		}
		uploaded += int64(len(data))
		log.Default().Infof("uploaded %s (%d bytes)", uri, len(data))
	}

	return uploaded, nil
}

// EnsureSetup fetches every URI (via localCache) and splices each
// resulting directory onto paths' head. Returns the last fetched
// directory, or "" if uris is empty.
//
// Known limitation: with multiple URIs only the last directory is
// reported; no merging is attempted.
func EnsureSetup(ctx context.Context, uris []string, client *blobstore.Client, localCache *cache.Cache, paths *searchpath.List) (string, error) {
	var last string
	for _, uri := range uris {
		dir, err := localCache.Fetch(ctx, uri, client)
		if err != nil {
			return "", err
		}
		paths.Prepend(dir)
		last = dir
	}
	return last, nil
}

func moduleDirList(dirs []string) []archive.ModuleDir {
	out := make([]archive.ModuleDir, len(dirs))
	for i, d := range dirs {
		out[i] = archive.ModuleDir{Path: d}
	}
	return out
}
