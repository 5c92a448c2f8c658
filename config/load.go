package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VKT"

// Keys lists every configuration key in file order.
//
//nolint:gochecknoglobals // fixed key table
var Keys = []string{
	"user.name",
	"user.email",
	"user.auto_signoff",
	"remote.provider",
	"remote.api_url",
	"remote.token",
	"remote.timeout",
	"remote.max_attempts",
	"repo.project_id",
	"repo.default_branch",
	"template.pr_prefix",
}

// DefaultPath returns <user config dir>/vkt/config.toml.
func DefaultPath() (string, error) {
	const errCtx = "locating config file"

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return filepath.Join(dir, "vkt", "config.toml"), nil
}

// setDefaults registers every key so that env-only
// values are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	for _, k := range Keys {
		v.SetDefault(k, "")
	}

	v.SetDefault("user.auto_signoff", false)
	v.SetDefault("remote.timeout", DefaultTimeout.String())
	v.SetDefault("remote.max_attempts", DefaultMaxAttempts)
	v.SetDefault("repo.default_branch", DefaultBranch)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	return v
}

func newEnvViper() *viper.Viper {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}

// readFile loads path into v. A missing file is not an
// error.
func readFile(v *viper.Viper, path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return false, err
	}

	return true, nil
}

// Decode reads the file at path, applies environment
// overrides and defaults, and returns the result
// without validating it. An empty path selects
// DefaultPath.
func Decode(path string) (*Config, error) {
	const errCtx = "loading config"

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		path = p
	}

	v := newEnvViper()

	found, err := readFile(v, path)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", errCtx, path, err)
	}

	if !found {
		slog.Debug("config file not found, using environment", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &cfg, nil
}

// Load is Decode followed by Validate.
func Load(path string) (*Config, error) {
	const errCtx = "loading config"

	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Debug(
		"configuration loaded",
		"project", cfg.Repo.ProjectID,
		"timeout", cfg.Remote.Timeout,
		"max_attempts", cfg.Remote.MaxAttempts,
	)

	return cfg, nil
}
