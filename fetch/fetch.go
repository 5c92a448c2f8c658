package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/byte4ever/vkt/digester"
	"github.com/byte4ever/vkt/forge"
)

// DefaultLimit bounds concurrent file downloads.
const DefaultLimit = 8

var (
	// ErrLocalExists indicates a local file that would
	// be overwritten without force.
	ErrLocalExists = errors.New("local file already exists")

	// ErrAllFailed indicates a directory download in
	// which no file succeeded.
	ErrAllFailed = errors.New("all downloads failed")
)

// Source is the read-only forge capability used here.
type Source interface {
	List(
		ctx context.Context,
		path string,
		recursive bool,
	) ([]forge.RemoteEntry, error)
	ReadBlob(ctx context.Context, path string) ([]byte, error)
}

// List returns the entries under path, directories
// first then by name.
func List(
	ctx context.Context,
	src Source,
	remote string,
	recursive bool,
) ([]forge.RemoteEntry, error) {
	const errCtx = "listing remote path"

	entries, err := src.List(ctx, forge.CleanPath(remote), recursive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	SortEntries(entries, recursive)

	return entries, nil
}

// SortEntries orders directories before files, then
// by name; recursive listings order by full path.
func SortEntries(entries []forge.RemoteEntry, recursive bool) {
	key := func(e forge.RemoteEntry) string {
		if recursive {
			return e.Path
		}

		return e.Name()
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}

		return key(a) < key(b)
	})
}

// Options tunes Download.
type Options struct {
	// Output is the local directory receiving the
	// download. Defaults to ".".
	Output string
	// Force allows overwriting local files.
	Force bool
	// Limit bounds concurrent downloads.
	Limit int
}

// Result reports one downloaded file.
type Result struct {
	RemotePath string `json:"remote_path" yaml:"remote_path"`
	LocalPath  string `json:"local_path" yaml:"local_path"`
	Size       int64  `json:"size" yaml:"size"`
	Digest     string `json:"digest,omitempty" yaml:"digest,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`

	// Unchanged is set when the local file already
	// held the same content and was left alone.
	Unchanged bool `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`

	err error
}

// OK reports whether the file was saved.
func (r Result) OK() bool {
	return r.err == nil && r.Error == ""
}

// Err returns the failure of this file, if any.
func (r Result) Err() error {
	return r.err
}

// Download saves remote into opts.Output. A file is
// written as <output>/<basename>. A directory is
// walked recursively and written below
// <output>/<basename>; its files are fetched
// concurrently and failures are reported per file.
// The returned error is set when nothing could be
// saved.
func Download(
	ctx context.Context,
	src Source,
	remote string,
	opts Options,
) ([]Result, error) {
	const errCtx = "downloading"

	remote = forge.CleanPath(remote)

	if opts.Output == "" {
		opts.Output = "."
	}

	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}

	if remote != "" {
		data, err := src.ReadBlob(ctx, remote)

		switch {
		case err == nil:
			res := save(
				remote,
				filepath.Join(opts.Output, path.Base(remote)),
				data, opts.Force,
			)
			if res.err != nil {
				return []Result{res}, fmt.Errorf(
					"%s %q: %w", errCtx, remote, res.err,
				)
			}

			slog.Info(
				"saved file",
				"path", res.LocalPath,
				"size", res.Size,
			)

			return []Result{res}, nil
		case !errors.Is(err, forge.ErrNotFound):
			return nil, fmt.Errorf(
				"%s %q: %w", errCtx, remote, err,
			)
		}
	}

	return downloadDir(ctx, src, remote, opts)
}

func downloadDir(
	ctx context.Context,
	src Source,
	remote string,
	opts Options,
) ([]Result, error) {
	const errCtx = "downloading directory"

	entries, err := src.List(ctx, remote, true)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", errCtx, remote, err)
	}

	var files []string

	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Path)
		}
	}

	sort.Strings(files)

	if len(files) == 0 {
		slog.Info("directory is empty", "path", remote)

		return nil, nil
	}

	root := opts.Output
	if remote != "" {
		root = filepath.Join(opts.Output, path.Base(remote))
	}

	slog.Info(
		"downloading directory",
		"path", remote,
		"files", len(files),
		"to", root,
	)

	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Limit)

	for i, rp := range files {
		rel := strings.TrimPrefix(rp, remote)
		rel = strings.TrimPrefix(rel, "/")
		local := filepath.Join(root, filepath.FromSlash(rel))

		g.Go(func() error {
			data, err := src.ReadBlob(gctx, rp)
			if err != nil {
				results[i] = Result{
					RemotePath: rp,
					LocalPath:  local,
					Error:      err.Error(),
					err:        err,
				}

				// Cancellation stops the whole download.
				if ctx.Err() != nil {
					return ctx.Err()
				}

				return nil
			}

			results[i] = save(rp, local, data, opts.Force)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("%s %q: %w", errCtx, remote, err)
	}

	failed := 0

	for _, r := range results {
		if !r.OK() {
			failed++

			slog.Warn(
				"download failed",
				"path", r.RemotePath,
				"error", r.err,
			)
		}
	}

	if failed == len(results) {
		return results, fmt.Errorf(
			"%s %q: %w", errCtx, remote, ErrAllFailed,
		)
	}

	return results, nil
}

func save(
	remote string,
	local string,
	data []byte,
	force bool,
) Result {
	res := Result{
		RemotePath: remote,
		LocalPath:  local,
		Size:       int64(len(data)),
	}

	fail := func(err error) Result {
		res.err = err
		res.Error = err.Error()

		return res
	}

	if !force {
		if _, err := os.Stat(local); err == nil {
			same, err := digester.Verify(local, digester.Sum(data))
			if err != nil {
				return fail(err)
			}

			if !same {
				return fail(fmt.Errorf("%s: %w", local, ErrLocalExists))
			}

			res.Digest = digester.Sum(data)
			res.Unchanged = true

			return res
		}
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return fail(err)
	}

	//nolint:gosec // downloaded files are user content
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return fail(err)
	}

	digest, err := digester.CalculateDigest(local)
	if err != nil {
		return fail(err)
	}

	res.Digest = digest

	return res
}
