package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/vkt/cli"
	"github.com/byte4ever/vkt/config"
	"github.com/byte4ever/vkt/fetch"
	"github.com/byte4ever/vkt/forge"
	"github.com/byte4ever/vkt/submit"
)

const testConfig = `
[user]
name = "Jane Doe"
email = "jane@example.com"

[remote]
provider = "gitcode"
api_url = "https://api.gitcode.com/api/v5"
token = "secret-token"

[repo]
project_id = "owner/repo"

[template]
pr_prefix = "[VKT]"
`

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type harness struct {
	t        *testing.T
	cfgPath  string
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	provider forge.Funcs
	built    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	return &harness{t: t, cfgPath: path}
}

func (h *harness) run(args ...string) error {
	h.t.Helper()

	h.stdout.Reset()
	h.stderr.Reset()

	env := cli.Env{
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Now:    func() time.Time { return fixedNow },
		NewProvider: func(*config.Config) (forge.Provider, error) {
			h.built++

			return h.provider, nil
		},
	}

	return cli.Execute(
		context.Background(), env,
		append([]string{"--config", h.cfgPath}, args...),
	)
}

func TestList(t *testing.T) {
	h := newHarness(t)

	var gotRecursive bool

	h.provider.ListFunc = func(
		_ context.Context,
		_ string,
		recursive bool,
	) ([]forge.RemoteEntry, error) {
		gotRecursive = recursive

		return []forge.RemoteEntry{
			{Path: "src/main.go", Kind: forge.KindFile},
			{Path: "src/lib", Kind: forge.KindDirectory},
		}, nil
	}

	require.NoError(t, h.run("list", "src"))
	assert.Equal(t, "lib/\nmain.go\n", h.stdout.String())
	assert.False(t, gotRecursive)

	require.NoError(t, h.run("list", "src", "-r", "--format", "json"))
	assert.True(t, gotRecursive)

	var entries []forge.RemoteEntry

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &entries))
	assert.Equal(t, "src/lib", entries[0].Path)
}

func TestList_not_found(t *testing.T) {
	h := newHarness(t)
	h.provider.ListFunc = func(
		context.Context, string, bool,
	) ([]forge.RemoteEntry, error) {
		return nil, &forge.APIError{Kind: forge.ErrNotFound, Status: 404}
	}

	require.ErrorIs(t, h.run("list", "nope"), forge.ErrNotFound)
}

func TestGet_file(t *testing.T) {
	h := newHarness(t)
	out := t.TempDir()

	h.provider.ReadBlobFunc = func(
		_ context.Context,
		path string,
	) ([]byte, error) {
		assert.Equal(t, "scripts/debug.sh", path)

		return []byte("echo hi\n"), nil
	}

	require.NoError(t, h.run("get", "scripts/debug.sh", "-o", out))

	data, err := os.ReadFile(filepath.Join(out, "debug.sh"))
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", string(data))
	assert.Contains(t, h.stdout.String(), "Downloaded 1 of 1 file(s)")

	require.NoError(t, h.run("get", "scripts/debug.sh", "-o", out))
	assert.Contains(t, h.stdout.String(), "unchanged")

	require.NoError(t, os.WriteFile(
		filepath.Join(out, "debug.sh"), []byte("edited\n"), 0o600,
	))
	require.ErrorIs(
		t, h.run("get", "scripts/debug.sh", "-o", out), fetch.ErrLocalExists,
	)
	require.NoError(t, h.run("get", "scripts/debug.sh", "-o", out, "--force"))
}

func submitProvider(calls *[]string) forge.Funcs {
	return forge.Funcs{
		PathExistsFunc: func(context.Context, string) (bool, error) {
			return false, nil
		},
		CreateBranchFunc: func(
			_ context.Context,
			name string,
			_ string,
		) (string, error) {
			*calls = append(*calls, "branch "+name)

			return "sha", nil
		},
		UploadFileFunc: func(
			_ context.Context,
			up forge.Upload,
		) (string, error) {
			*calls = append(*calls, "upload "+up.Path)

			return "c0ffee", nil
		},
		CreatePullRequestFunc: func(
			_ context.Context,
			spec forge.PullRequestSpec,
		) (forge.PullRequest, error) {
			*calls = append(*calls, "pr "+spec.Title)

			return forge.PullRequest{
				Number: 7,
				URL:    "https://gitcode.com/owner/repo/pulls/7",
			}, nil
		},
	}
}

func TestSubmit(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(t.TempDir(), "debug.sh")
	require.NoError(t, os.WriteFile(src, []byte("echo hi\n"), 0o600))

	var calls []string

	h.provider = submitProvider(&calls)

	require.NoError(t, h.run(
		"submit", src, "--target", "scripts", "--msg", "add debug script",
	))

	assert.Equal(t, []string{
		"branch feat/add-debug-script-20260304050607",
		"upload scripts/debug.sh",
		"pr [VKT] add debug script",
	}, calls)
	assert.Contains(t, h.stdout.String(), "#7 https://gitcode.com/owner/repo/pulls/7")
	assert.NotContains(t, h.stderr.String(), "secret-token")
}

func TestSubmit_dry_run(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(t.TempDir(), "debug.sh")
	require.NoError(t, os.WriteFile(src, []byte("echo hi\n"), 0o600))

	var calls []string

	h.provider = submitProvider(&calls)

	require.NoError(t, h.run(
		"submit", src, "-t", "scripts", "-m", "add debug script",
		"--dry-run", "--format", "json",
	))

	assert.Empty(t, calls)

	var out submit.Outcome

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	assert.True(t, out.DryRun)
	assert.Equal(t, submit.StatusSuccess, out.Status)
	assert.Equal(t, submit.StateValidated, out.State)
}

func TestSubmit_conflict_aborts(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(t.TempDir(), "debug.sh")
	require.NoError(t, os.WriteFile(src, []byte("echo hi\n"), 0o600))

	var calls []string

	h.provider = submitProvider(&calls)
	h.provider.PathExistsFunc = func(context.Context, string) (bool, error) {
		return true, nil
	}

	err := h.run("submit", src, "-t", "scripts", "-m", "add debug script")

	require.ErrorIs(t, err, submit.ErrAborted)
	assert.Empty(t, calls)
	assert.Contains(t, h.stdout.String(), "scripts/debug.sh")
	assert.Contains(t, h.stdout.String(), "--force")
}

func TestSubmit_requires_flags(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.run("submit", "x", "--msg", "m"))
	require.Error(t, h.run("submit", "x", "--target", "t"))
	assert.Zero(t, h.built)
}

func TestConfig_commands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkt", "config.toml")

	h := newHarness(t)
	h.cfgPath = path

	require.NoError(t, h.run("config", "--init"))
	assert.Contains(t, h.stdout.String(), path)

	require.Error(t, h.run("config", "--init"))

	require.NoError(t, h.run("config", "user.name", "Jane"))
	assert.Equal(t, "user.name = Jane\n", h.stdout.String())

	require.NoError(t, h.run("config", "user.name"))
	assert.Equal(t, "Jane\n", h.stdout.String())

	require.NoError(t, h.run("config", "remote.token", "very-secret"))
	assert.Equal(t, "remote.token = ********\n", h.stdout.String())

	require.NoError(t, h.run("config", "--list"))
	assert.Contains(t, h.stdout.String(), "[user]")
	assert.Contains(t, h.stdout.String(), "name = Jane")
	assert.NotContains(t, h.stdout.String(), "very-secret")

	require.ErrorIs(t, h.run("config", "nope.key"), config.ErrUnknownKey)
}

func TestBadFormat(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.run("list", "--format", "xml"))
	assert.Zero(t, h.built)
}

func TestMissingConfig(t *testing.T) {
	h := newHarness(t)
	h.cfgPath = filepath.Join(t.TempDir(), "missing.toml")

	err := h.run("list")

	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "vkt config --init")
}

func TestNewProvider(t *testing.T) {
	base := func(provider, url string) *config.Config {
		return &config.Config{
			User: config.UserConfig{Name: "n", Email: "n@example.com"},
			Remote: config.RemoteConfig{
				Provider:    provider,
				APIURL:      url,
				Token:       "tok",
				Timeout:     time.Second,
				MaxAttempts: 1,
			},
			Repo: config.RepoConfig{
				ProjectID:     "owner/repo",
				DefaultBranch: "main",
			},
		}
	}

	tests := []struct {
		name     string
		cfg      *config.Config
		wantType string
		wantErr  bool
	}{
		{
			name:     "gitcode",
			cfg:      base("gitcode", "https://api.gitcode.com/api/v5"),
			wantType: "*gitcode.Provider",
		},
		{
			name:     "gitlab detected",
			cfg:      base("", "https://gitlab.example.com"),
			wantType: "*gitlab.Provider",
		},
		{
			name:     "github",
			cfg:      base("GitHub", "https://api.github.com"),
			wantType: "*github.Provider",
		},
		{
			name:    "unknown",
			cfg:     base("svn", "https://example.com/api"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv, err := cli.NewProvider(tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, config.ErrInvalid)
				assert.Nil(t, pv)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typeName(pv))
		})
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
