package planner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/byte4ever/vkt/digester"
	"github.com/byte4ever/vkt/forge"
)

// DefaultCheckLimit bounds concurrent PathExists
// checks.
const DefaultCheckLimit = 8

var (
	// ErrNothingToSubmit indicates a source directory
	// without regular files.
	ErrNothingToSubmit = errors.New("nothing to submit")

	// ErrTargetConflict indicates remote paths that
	// already exist while overwriting is not allowed.
	ErrTargetConflict = errors.New("target paths already exist")
)

// ConflictError lists the remote paths that block a
// submission. It matches ErrTargetConflict.
type ConflictError struct {
	Paths []string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%s: %s",
		ErrTargetConflict, strings.Join(e.Paths, ", "),
	)
}

// Is reports whether target is ErrTargetConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrTargetConflict
}

// Item is one file to upload.
type Item struct {
	// LocalPath is the file on disk.
	LocalPath string `json:"local_path" yaml:"local_path"`
	// RemotePath is the destination, relative to the
	// repository root.
	RemotePath string `json:"remote_path" yaml:"remote_path"`
	// Content holds the file bytes read at planning
	// time; later changes on disk are not seen.
	Content []byte `json:"-" yaml:"-"`
	// Hash is the SHA256 hex digest of Content.
	Hash string `json:"hash" yaml:"hash"`
}

// Size returns the content length.
func (it Item) Size() int64 {
	return int64(len(it.Content))
}

// Exister is the read-only forge capability used by
// the conflict gate.
type Exister interface {
	PathExists(ctx context.Context, path string) (bool, error)
}

// Collect reads src and returns its upload items. A
// file maps to <target>/<basename>. A directory is
// walked recursively and each regular file maps to
// <target>/<relative path>; symbolic links are
// skipped. Items are sorted by relative path.
func Collect(src string, target string) ([]Item, error) {
	const errCtx = "collecting local files"

	target = forge.CleanPath(target)

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf(
				"%s: %s is not a regular file", errCtx, src,
			)
		}

		it, err := readItem(
			src, forge.JoinPath(target, filepath.Base(src)),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return []Item{it}, nil
	}

	type found struct {
		local string
		rel   string
	}

	var files []found

	err = filepath.WalkDir(
		src,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err
			}

			files = append(files, found{
				local: p,
				rel:   filepath.ToSlash(rel),
			})

			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: walk %s: %w", errCtx, src, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, src, ErrNothingToSubmit,
		)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].rel < files[j].rel
	})

	items := make([]Item, 0, len(files))

	for _, f := range files {
		it, err := readItem(f.local, forge.JoinPath(target, f.rel))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		items = append(items, it)
	}

	return items, nil
}

func readItem(local string, remote string) (Item, error) {
	data, err := os.ReadFile(local) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return Item{}, err
	}

	return Item{
		LocalPath:  local,
		RemotePath: remote,
		Content:    data,
		Hash:       digester.Sum(data),
	}, nil
}

// Conflicts checks every item's remote path, at most
// limit at a time (DefaultCheckLimit when limit < 1),
// and returns the existing ones sorted. The first
// failed check cancels the rest.
func Conflicts(
	ctx context.Context,
	ex Exister,
	items []Item,
	limit int,
) ([]string, error) {
	const errCtx = "checking remote conflicts"

	if limit < 1 {
		limit = DefaultCheckLimit
	}

	exists := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, it := range items {
		g.Go(func() error {
			ok, err := ex.PathExists(gctx, it.RemotePath)
			if err != nil {
				return fmt.Errorf("%q: %w", it.RemotePath, err)
			}

			exists[i] = ok

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var conflicts []string

	for i, ok := range exists {
		if ok {
			conflicts = append(conflicts, items[i].RemotePath)
		}
	}

	sort.Strings(conflicts)

	return conflicts, nil
}

// Plan collects src and runs the conflict gate. When
// conflicts exist and force is false it returns the
// items and conflicts along with a *ConflictError.
// Under force the conflicts are returned without
// error; they will be overwritten.
func Plan(
	ctx context.Context,
	ex Exister,
	src string,
	target string,
	force bool,
) ([]Item, []string, error) {
	items, err := Collect(src, target)
	if err != nil {
		return nil, nil, err
	}

	conflicts, err := Conflicts(ctx, ex, items, DefaultCheckLimit)
	if err != nil {
		return nil, nil, err
	}

	if len(conflicts) > 0 && !force {
		return items, conflicts, &ConflictError{Paths: conflicts}
	}

	return items, conflicts, nil
}

// ContentHash folds the item hashes in order into the
// aggregate digest of a submission.
func ContentHash(items []Item) string {
	hashes := make([]string, len(items))
	for i, it := range items {
		hashes[i] = it.Hash
	}

	return digester.Combine(hashes)
}
