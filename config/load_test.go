package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/vkt/config"
)

const fullTOML = `
[user]
name = "Test User"
email = "test@example.com"
auto_signoff = true

[remote]
provider = "Gitcode"
api_url = "https://api.example.com"
token = "token123"
timeout = "10s"
max_attempts = 5

[repo]
project_id = "owner/repo"
default_branch = "develop"

[template]
pr_prefix = "[TEST]"
`

const minimalTOML = `
[user]
name = "Test"
email = "test@example.com"

[remote]
api_url = "https://gitlab.example.com/api/v4"
token = "token"

[repo]
project_id = "owner/repo"
`

func writeFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_full(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeFile(t, fullTOML))
	require.NoError(t, err)

	assert.Equal(t, "Test User", cfg.User.Name)
	assert.True(t, cfg.User.AutoSignoff)
	assert.Equal(t, "Gitcode", cfg.Remote.Provider)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.Remote.MaxAttempts)
	assert.Equal(t, "develop", cfg.Repo.DefaultBranch)
	assert.Equal(t, "[TEST]", cfg.Template.PRPrefix)
}

func TestLoad_defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeFile(t, minimalTOML))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Repo.DefaultBranch)
	assert.False(t, cfg.User.AutoSignoff)
	assert.Equal(t, config.DefaultTimeout, cfg.Remote.Timeout)
	assert.Equal(t, config.DefaultMaxAttempts, cfg.Remote.MaxAttempts)

	p, err := cfg.ProviderKind()
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGitLab, p)
}

func TestLoad_invalid_toml(t *testing.T) {
	t.Parallel()

	_, err := config.Load(writeFile(t, "invalid toml content"))
	require.Error(t, err)
}

func TestLoad_invalid_values(t *testing.T) {
	t.Parallel()

	_, err := config.Load(writeFile(t, `
[user]
name = "Test"
email = "nope"
`))

	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoad_env_overrides(t *testing.T) {
	path := writeFile(t, minimalTOML)

	t.Setenv("VKT_REMOTE_TOKEN", "from-env")
	t.Setenv("VKT_REPO_DEFAULT_BRANCH", "trunk")
	t.Setenv("VKT_USER_AUTO_SIGNOFF", "true")
	t.Setenv("VKT_REMOTE_TIMEOUT", "2m")
	t.Setenv("VKT_TEMPLATE_PR_PREFIX", "[ENV]")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Remote.Token)
	assert.Equal(t, "trunk", cfg.Repo.DefaultBranch)
	assert.True(t, cfg.User.AutoSignoff)
	assert.Equal(t, 2*time.Minute, cfg.Remote.Timeout)
	assert.Equal(t, "[ENV]", cfg.Template.PRPrefix)
}

func TestLoad_env_only(t *testing.T) {
	t.Setenv("VKT_USER_NAME", "Env User")
	t.Setenv("VKT_USER_EMAIL", "env@example.com")
	t.Setenv("VKT_REMOTE_API_URL", "https://api.github.com")
	t.Setenv("VKT_REMOTE_TOKEN", "tok")
	t.Setenv("VKT_REPO_PROJECT_ID", "o/r")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Env User", cfg.User.Name)

	p, err := cfg.ProviderKind()
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGitHub, p)
}

func TestSet_builds_file(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vkt", "config.toml")

	require.NoError(t, config.Set(path, "user.name", "Jane"))
	require.NoError(t, config.Set(path, "remote.timeout", "45s"))
	require.NoError(t, config.Set(path, "user.auto_signoff", "true"))

	cfg, err := config.Decode(path)
	require.NoError(t, err)

	assert.Equal(t, "Jane", cfg.User.Name)
	assert.Equal(t, 45*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.User.AutoSignoff)
	assert.Equal(t, "main", cfg.Repo.DefaultBranch)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSet_preserves_other_keys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, fullTOML)

	require.NoError(t, config.Set(path, "repo.project_id", "other/repo"))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "other/repo", cfg.Repo.ProjectID)
	assert.Equal(t, "token123", cfg.Remote.Token)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
}

func TestSet_rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value string
		wantErr    error
	}{
		{"remote.nope", "x", config.ErrUnknownKey},
		{"user.email", "bad", config.ErrInvalid},
		{"remote.api_url", "ftp://x", config.ErrInvalid},
		{"remote.provider", "bitbucket", config.ErrInvalid},
		{"repo.project_id", "norepo", config.ErrInvalid},
		{"remote.max_attempts", "0", config.ErrInvalid},
		{"remote.timeout", "soon", nil},
		{"user.auto_signoff", "maybe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.toml")

			err := config.Set(path, tt.key, tt.value)
			require.Error(t, err)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestWriteExample(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vkt", "config.toml")

	require.NoError(t, config.WriteExample(path, false))
	require.ErrorIs(t, config.WriteExample(path, false), config.ErrExists)
	require.NoError(t, config.WriteExample(path, true))

	cfg, err := config.Decode(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "owner/repo", cfg.Repo.ProjectID)
}
