package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

var (
	// ErrUnknownKey indicates a key outside Keys.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrExists indicates an existing config file that
	// would be overwritten.
	ErrExists = errors.New("config file already exists")
)

// Example is a commented starter configuration.
const Example = `# vkt configuration
# Every key can be overridden with VKT_<SECTION>_<KEY>,
# e.g. VKT_REMOTE_TOKEN.

[user]
name = "John Doe"
email = "john.doe@example.com"
auto_signoff = true

[remote]
# gitcode, gitlab or github; detected from api_url when empty.
provider = "gitcode"
api_url = "https://api.gitcode.com/api/v5"
token = "your-api-token-here"
timeout = "30s"
max_attempts = 3

[repo]
project_id = "owner/repo"
default_branch = "main"

[template]
pr_prefix = "[VKT]"
`

// Value returns the textual value of key. The token is
// masked.
func (c *Config) Value(key string) (string, error) {
	switch key {
	case "user.name":
		return c.User.Name, nil
	case "user.email":
		return c.User.Email, nil
	case "user.auto_signoff":
		return strconv.FormatBool(c.User.AutoSignoff), nil
	case "remote.provider":
		return c.Remote.Provider, nil
	case "remote.api_url":
		return c.Remote.APIURL, nil
	case "remote.token":
		return mask(c.Remote.Token), nil
	case "remote.timeout":
		return c.Remote.Timeout.String(), nil
	case "remote.max_attempts":
		return strconv.Itoa(c.Remote.MaxAttempts), nil
	case "repo.project_id":
		return c.Repo.ProjectID, nil
	case "repo.default_branch":
		return c.Repo.DefaultBranch, nil
	case "template.pr_prefix":
		return c.Template.PRPrefix, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

// Setting is one key and its displayed value.
type Setting struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Settings lists every key with its value, token
// masked.
func (c *Config) Settings() []Setting {
	out := make([]Setting, 0, len(Keys))

	for _, k := range Keys {
		v, _ := c.Value(k)
		out = append(out, Setting{Key: k, Value: v})
	}

	return out
}

func parseValue(key, raw string) (any, error) {
	switch key {
	case "user.auto_signoff":
		return strconv.ParseBool(raw)
	case "remote.timeout":
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, err
		}

		return d.String(), nil
	case "remote.max_attempts":
		return strconv.Atoi(raw)
	default:
		return raw, nil
	}
}

// Set writes key = raw into the file at path, creating
// it when missing. Environment overrides are not
// persisted. Only the changed key is validated, so a
// file can be filled in one key at a time.
func Set(path, key, raw string) error {
	const errCtx = "setting config value"

	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%s: %w: %q", errCtx, ErrUnknownKey, key)
	}

	val, err := parseValue(key, raw)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", errCtx, key, err)
	}

	v := newViper()

	if _, err := readFile(v, path); err != nil {
		return fmt.Errorf("%s: reading %s: %w", errCtx, path, err)
	}

	v.Set(key, val)

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := validateKey(&cfg, key); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("%s: writing %s: %w", errCtx, path, err)
	}

	// The file holds the token.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func validateKey(c *Config, key string) error {
	bad := func(msg string) error {
		return fmt.Errorf("%w: %s %s", ErrInvalid, key, msg)
	}

	switch key {
	case "user.email":
		if !ValidEmail(c.User.Email) {
			return bad("has invalid format")
		}
	case "remote.api_url":
		if !ValidURL(c.Remote.APIURL) {
			return bad("has invalid format")
		}
	case "remote.provider":
		_, ok := ParseProvider(c.Remote.Provider)
		if c.Remote.Provider != "" && !ok {
			return bad("must be gitcode, gitlab or github")
		}
	case "remote.timeout":
		if c.Remote.Timeout <= 0 {
			return bad("must be positive")
		}
	case "remote.max_attempts":
		if c.Remote.MaxAttempts <= 0 {
			return bad("must be positive")
		}
	case "repo.project_id":
		if !validProjectID(c.Repo.ProjectID) {
			return bad("should be 'owner/repo'")
		}
	case "user.name", "remote.token", "repo.default_branch":
		if v, _ := c.Value(key); v == "" {
			return bad("cannot be empty")
		}
	}

	return nil
}

// WriteExample writes Example to path. An existing
// file is kept unless force is set.
func WriteExample(path string, force bool) error {
	const errCtx = "writing example config"

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %s: %w", errCtx, path, ErrExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.WriteFile(path, []byte(Example), 0o600); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
