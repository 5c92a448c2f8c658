package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/byte4ever/vkt/config"
	"github.com/byte4ever/vkt/forge"
	"github.com/byte4ever/vkt/forge/gitcode"
	"github.com/byte4ever/vkt/forge/github"
	"github.com/byte4ever/vkt/forge/gitlab"
)

// NewProvider selects and builds the forge client
// named by cfg. The choice is made once per process.
func NewProvider(cfg *config.Config) (forge.Provider, error) {
	const errCtx = "selecting provider"

	creds, err := cfg.Credentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Debug("using forge", "credentials", creds)

	httpClient := &http.Client{Timeout: cfg.Remote.Timeout}

	var (
		pv forge.Provider
		pe error
	)

	switch creds.Provider {
	case config.ProviderGitCode:
		pv, pe = gitcode.NewProvider(gitcode.Config{
			APIURL:        creds.APIURL,
			Repo:          cfg.Repo.ProjectID,
			AccessToken:   creds.Token,
			DefaultBranch: cfg.Repo.DefaultBranch,
			HTTPClient:    httpClient,
		})
	case config.ProviderGitLab:
		pv, pe = gitlab.NewProvider(gitlab.Config{
			Host:          creds.APIURL,
			Repo:          cfg.Repo.ProjectID,
			AccessToken:   creds.Token,
			DefaultBranch: cfg.Repo.DefaultBranch,
			HTTPClient:    httpClient,
		})
	case config.ProviderGitHub:
		owner, repo, _ := strings.Cut(cfg.Repo.ProjectID, "/")

		pv, pe = github.NewProvider(github.Config{
			RepoOwner:     owner,
			Repo:          repo,
			AccessToken:   creds.Token,
			DefaultBranch: cfg.Repo.DefaultBranch,
			BaseURL:       creds.APIURL,
			HTTPClient:    httpClient,
		})
	default:
		pe = fmt.Errorf("unsupported provider %q", creds.Provider)
	}

	if pe != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, pe)
	}

	return pv, nil
}
