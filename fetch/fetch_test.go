package fetch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/vkt/digester"
	"github.com/byte4ever/vkt/fetch"
	"github.com/byte4ever/vkt/forge"
)

// memForge serves a fixed set of files.
func memForge(files map[string]string) forge.Funcs {
	return forge.Funcs{
		ReadBlobFunc: func(
			_ context.Context,
			path string,
		) ([]byte, error) {
			data, ok := files[path]
			if !ok {
				return nil, &forge.APIError{Kind: forge.ErrNotFound, Status: 404}
			}

			return []byte(data), nil
		},
		ListFunc: func(
			_ context.Context,
			path string,
			recursive bool,
		) ([]forge.RemoteEntry, error) {
			var out []forge.RemoteEntry

			for p := range files {
				if path == "" || strings.HasPrefix(p, path+"/") {
					out = append(out, forge.RemoteEntry{
						Path: p,
						Kind: forge.KindFile,
					})
				}
			}

			if len(out) == 0 {
				return nil, &forge.APIError{Kind: forge.ErrNotFound, Status: 404}
			}

			return out, nil
		},
	}
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	entries := []forge.RemoteEntry{
		{Path: "z.txt", Kind: forge.KindFile},
		{Path: "b", Kind: forge.KindDirectory},
		{Path: "a.txt", Kind: forge.KindFile},
		{Path: "a", Kind: forge.KindDirectory},
	}

	fetch.SortEntries(entries, false)

	assert.Equal(t, []forge.RemoteEntry{
		{Path: "a", Kind: forge.KindDirectory},
		{Path: "b", Kind: forge.KindDirectory},
		{Path: "a.txt", Kind: forge.KindFile},
		{Path: "z.txt", Kind: forge.KindFile},
	}, entries)
}

func TestSortEntries_recursive_by_path(t *testing.T) {
	t.Parallel()

	entries := []forge.RemoteEntry{
		{Path: "x/b.txt", Kind: forge.KindFile},
		{Path: "a/z.txt", Kind: forge.KindFile},
		{Path: "x", Kind: forge.KindDirectory},
	}

	fetch.SortEntries(entries, true)

	assert.Equal(t, "x", entries[0].Path)
	assert.Equal(t, "a/z.txt", entries[1].Path)
	assert.Equal(t, "x/b.txt", entries[2].Path)
}

func TestList_sorts_and_cleans_path(t *testing.T) {
	t.Parallel()

	var gotPath string

	src := forge.Funcs{
		ListFunc: func(
			_ context.Context,
			path string,
			_ bool,
		) ([]forge.RemoteEntry, error) {
			gotPath = path

			return []forge.RemoteEntry{
				{Path: "src/main.go", Kind: forge.KindFile},
				{Path: "src/lib", Kind: forge.KindDirectory},
			}, nil
		},
	}

	entries, err := fetch.List(context.Background(), src, "/src/", false)

	require.NoError(t, err)
	assert.Equal(t, "src", gotPath)
	assert.Equal(t, "src/lib", entries[0].Path)
}

func TestList_error(t *testing.T) {
	t.Parallel()

	_, err := fetch.List(
		context.Background(), memForge(nil), "nope", false,
	)

	require.ErrorIs(t, err, forge.ErrNotFound)
}

func TestDownload_single_file(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	res, err := fetch.Download(
		context.Background(),
		memForge(map[string]string{"scripts/debug.sh": "echo hi\n"}),
		"scripts/debug.sh",
		fetch.Options{Output: out},
	)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].OK())
	assert.Equal(t, filepath.Join(out, "debug.sh"), res[0].LocalPath)
	assert.Equal(t, int64(8), res[0].Size)
	assert.Equal(t, digester.Sum([]byte("echo hi\n")), res[0].Digest)

	data, err := os.ReadFile(res[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", string(data))
}

func TestDownload_refuses_overwrite(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	local := filepath.Join(out, "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("mine"), 0o600))

	src := memForge(map[string]string{"a.txt": "theirs"})

	_, err := fetch.Download(
		context.Background(), src, "a.txt", fetch.Options{Output: out},
	)
	require.ErrorIs(t, err, fetch.ErrLocalExists)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))

	_, err = fetch.Download(
		context.Background(), src, "a.txt",
		fetch.Options{Output: out, Force: true},
	)
	require.NoError(t, err)

	data, err = os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "theirs", string(data))
}

func TestDownload_same_content_is_unchanged(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	local := filepath.Join(out, "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("same"), 0o600))

	res, err := fetch.Download(
		context.Background(),
		memForge(map[string]string{"a.txt": "same"}),
		"a.txt",
		fetch.Options{Output: out},
	)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].OK())
	assert.True(t, res[0].Unchanged)
	assert.Equal(t, digester.Sum([]byte("same")), res[0].Digest)
}

func TestDownload_directory(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	res, err := fetch.Download(
		context.Background(),
		memForge(map[string]string{
			"docs/a/1.txt": "one",
			"docs/b.txt":   "two",
			"other.txt":    "skip",
		}),
		"docs",
		fetch.Options{Output: out, Limit: 2},
	)

	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "docs/a/1.txt", res[0].RemotePath)
	assert.Equal(t, "docs/b.txt", res[1].RemotePath)

	data, err := os.ReadFile(filepath.Join(out, "docs", "a", "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, err = os.Stat(filepath.Join(out, "docs", "b.txt"))
	require.NoError(t, err)
}

func TestDownload_directory_partial_failure(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(out, "docs"), 0o750))
	require.NoError(t, os.WriteFile(
		filepath.Join(out, "docs", "b.txt"), []byte("mine"), 0o600,
	))

	res, err := fetch.Download(
		context.Background(),
		memForge(map[string]string{
			"docs/a.txt": "one",
			"docs/b.txt": "two",
		}),
		"docs",
		fetch.Options{Output: out},
	)

	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[0].OK())
	assert.False(t, res[1].OK())
	assert.True(t, errors.Is(res[1].Err(), fetch.ErrLocalExists))
	assert.NotEmpty(t, res[1].Error)
}

func TestDownload_directory_all_failed(t *testing.T) {
	t.Parallel()

	src := memForge(map[string]string{"docs/a.txt": "one"})
	src.ReadBlobFunc = func(_ context.Context, path string) ([]byte, error) {
		if path == "docs" {
			return nil, &forge.APIError{Kind: forge.ErrNotFound}
		}

		return nil, &forge.APIError{Kind: forge.ErrTransport}
	}

	res, err := fetch.Download(
		context.Background(), src, "docs",
		fetch.Options{Output: t.TempDir()},
	)

	require.ErrorIs(t, err, fetch.ErrAllFailed)
	require.Len(t, res, 1)
	assert.True(t, errors.Is(res[0].Err(), forge.ErrTransport))
}

func TestDownload_missing_path(t *testing.T) {
	t.Parallel()

	_, err := fetch.Download(
		context.Background(), memForge(nil), "nope",
		fetch.Options{Output: t.TempDir()},
	)

	require.ErrorIs(t, err, forge.ErrNotFound)
}

func TestDownload_read_error_is_not_masked(t *testing.T) {
	t.Parallel()

	src := forge.Funcs{
		ReadBlobFunc: func(context.Context, string) ([]byte, error) {
			return nil, &forge.APIError{Kind: forge.ErrAuthFailure}
		},
	}

	_, err := fetch.Download(
		context.Background(), src, "a.txt",
		fetch.Options{Output: t.TempDir()},
	)

	require.ErrorIs(t, err, forge.ErrAuthFailure)
}
