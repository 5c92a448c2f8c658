package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names a forge flavour.
type Provider string

// Known providers.
const (
	ProviderGitCode Provider = "gitcode"
	ProviderGitLab  Provider = "gitlab"
	ProviderGitHub  Provider = "github"
)

// Defaults applied when a key is not set.
const (
	DefaultBranch      = "main"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
)

const tokenMask = "********"

// ErrInvalid indicates a configuration that fails
// validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full vkt configuration.
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Repo     RepoConfig     `mapstructure:"repo"`
	Template TemplateConfig `mapstructure:"template"`
}

// UserConfig identifies the contributor.
type UserConfig struct {
	Name        string `mapstructure:"name"`
	Email       string `mapstructure:"email"`
	AutoSignoff bool   `mapstructure:"auto_signoff"`
}

// RemoteConfig locates and authenticates the forge.
type RemoteConfig struct {
	// Provider is gitcode, gitlab or github. When
	// empty it is detected from APIURL.
	Provider string `mapstructure:"provider"`
	APIURL   string `mapstructure:"api_url"`
	Token    string `mapstructure:"token"`
	// Timeout bounds each remote call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxAttempts bounds tries per remote call.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// RepoConfig names the target repository.
type RepoConfig struct {
	// ProjectID is "owner/repo".
	ProjectID     string `mapstructure:"project_id"`
	DefaultBranch string `mapstructure:"default_branch"`
}

// TemplateConfig customizes generated texts.
type TemplateConfig struct {
	// PRPrefix is prepended to pull request titles.
	PRPrefix string `mapstructure:"pr_prefix"`
}

// ParseProvider resolves a provider name, ignoring
// case.
func ParseProvider(name string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderGitCode, ProviderGitLab, ProviderGitHub:
		return p, true
	default:
		return p, false
	}
}

// DetectProvider guesses the provider from an API URL.
func DetectProvider(apiURL string) (Provider, bool) {
	u := strings.ToLower(apiURL)

	switch {
	case strings.Contains(u, "gitcode.com"):
		return ProviderGitCode, true
	case strings.Contains(u, "gitlab"), strings.Contains(u, "git-lab"):
		return ProviderGitLab, true
	case strings.Contains(u, "github.com"):
		return ProviderGitHub, true
	default:
		return "", false
	}
}

// ProviderKind returns the configured provider, or
// the one detected from the API URL when unset.
func (c *Config) ProviderKind() (Provider, error) {
	if c.Remote.Provider == "" {
		p, ok := DetectProvider(c.Remote.APIURL)
		if !ok {
			return "", fmt.Errorf(
				"%w: cannot detect provider from api_url %q; set remote.provider",
				ErrInvalid, c.Remote.APIURL,
			)
		}

		return p, nil
	}

	p, ok := ParseProvider(c.Remote.Provider)
	if !ok {
		return "", fmt.Errorf(
			"%w: unknown provider %q (want gitcode, gitlab or github)",
			ErrInvalid, c.Remote.Provider,
		)
	}

	return p, nil
}

// Validate checks c and returns the first problem
// found.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
	}

	switch {
	case c.User.Name == "":
		return invalid("user.name cannot be empty")
	case c.User.Email == "":
		return invalid("user.email cannot be empty")
	case !ValidEmail(c.User.Email):
		return invalid("user.email has invalid format: %q", c.User.Email)
	case c.Remote.APIURL == "":
		return invalid("remote.api_url cannot be empty")
	case !ValidURL(c.Remote.APIURL):
		return invalid("remote.api_url has invalid format: %q", c.Remote.APIURL)
	case c.Remote.Token == "":
		return invalid("remote.token cannot be empty")
	case c.Remote.Timeout <= 0:
		return invalid("remote.timeout must be positive")
	case c.Remote.MaxAttempts <= 0:
		return invalid("remote.max_attempts must be positive")
	case c.Repo.ProjectID == "":
		return invalid("repo.project_id cannot be empty")
	case !validProjectID(c.Repo.ProjectID):
		return invalid(
			"repo.project_id should be 'owner/repo': %q", c.Repo.ProjectID,
		)
	case c.Repo.DefaultBranch == "":
		return invalid("repo.default_branch cannot be empty")
	}

	_, err := c.ProviderKind()

	return err
}

// ValidEmail applies a loose shape check to an email
// address.
func ValidEmail(email string) bool {
	return strings.Contains(email, "@") &&
		strings.Contains(email, ".") &&
		!strings.HasPrefix(email, "@") &&
		!strings.HasSuffix(email, ".") &&
		len(email) > 5
}

// ValidURL reports whether u looks like an http(s)
// endpoint.
func ValidURL(u string) bool {
	return (strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://")) &&
		len(u) > 10
}

func validProjectID(id string) bool {
	owner, repo, ok := strings.Cut(id, "/")

	return ok && owner != "" && repo != "" &&
		!strings.HasSuffix(repo, "/")
}

// Credentials are what a forge client needs to
// authenticate. The token never appears in String or
// log output.
type Credentials struct {
	Provider Provider
	APIURL   string
	Token    string
}

// Credentials extracts the forge credentials of a
// validated configuration.
func (c *Config) Credentials() (Credentials, error) {
	p, err := c.ProviderKind()
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Provider: p,
		APIURL:   c.Remote.APIURL,
		Token:    c.Remote.Token,
	}, nil
}

// String implements fmt.Stringer with the token
// masked.
func (c Credentials) String() string {
	return fmt.Sprintf(
		"provider=%s api_url=%s token=%s",
		c.Provider, c.APIURL, mask(c.Token),
	)
}

// LogValue implements slog.LogValuer with the token
// masked.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(c.Provider)),
		slog.String("api_url", c.APIURL),
		slog.String("token", mask(c.Token)),
	)
}

func mask(token string) string {
	if token == "" {
		return ""
	}

	return tokenMask
}
