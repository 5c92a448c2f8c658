package gitlab

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/vkt/forge"
)

// Config holds the settings needed to create a GitLab
// provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project").
	Repo string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
	// DefaultBranch is the ref used for reads.
	// Defaults to "main".
	DefaultBranch string
	// HTTPClient is an optional transport.
	HTTPClient *http.Client
}

// Provider talks to GitLab.
//
// Pattern: Strategy -- implements forge.Provider.
type Provider struct {
	client        *gl.Client
	repo          string
	defaultBranch string
}

var _ forge.Provider = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to use.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	opts := []gl.ClientOptionFunc{
		gl.WithBaseURL(host),
		gl.WithoutRetries(),
	}

	if cfg.HTTPClient != nil {
		opts = append(opts, gl.WithHTTPClient(cfg.HTTPClient))
	}

	client, err := gl.NewClient(cfg.AccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	return &Provider{
		client:        client,
		repo:          cfg.Repo,
		defaultBranch: branch,
	}, nil
}

// List returns the repository tree under path on the
// default branch, following pagination.
func (p *Provider) List(
	ctx context.Context,
	path string,
	recursive bool,
) ([]forge.RemoteEntry, error) {
	const errCtx = "listing gitlab path"

	path = forge.CleanPath(path)

	opt := &gl.ListTreeOptions{
		ListOptions: gl.ListOptions{PerPage: 100},
		Ref:         gl.Ptr(p.defaultBranch),
		Recursive:   gl.Ptr(recursive),
	}

	if path != "" {
		opt.Path = gl.Ptr(path)
	}

	var entries []forge.RemoteEntry

	for {
		nodes, resp, err := p.client.Repositories.ListTree(
			p.repo, opt, gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s %q: %w",
				errCtx, path, classify(ctx, resp, err),
			)
		}

		for _, n := range nodes {
			en := forge.RemoteEntry{
				Path: n.Path,
				Kind: forge.KindFile,
			}

			if n.Type == "tree" {
				en.Kind = forge.KindDirectory
			}

			entries = append(entries, en)
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}

		opt.Page = resp.NextPage
	}

	// Listing a file path returns an empty tree;
	// report the file itself like ls does.
	if len(entries) == 0 && path != "" {
		f, resp, err := p.client.RepositoryFiles.GetFileMetaData(
			p.repo, path,
			&gl.GetFileMetaDataOptions{
				Ref: gl.Ptr(p.defaultBranch),
			},
			gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s %q: %w",
				errCtx, path, classify(ctx, resp, err),
			)
		}

		entries = append(entries, forge.RemoteEntry{
			Path: f.FilePath,
			Kind: forge.KindFile,
			Size: int64(f.Size),
		})
	}

	return entries, nil
}

// ReadBlob returns the raw bytes of the file at path
// on the default branch.
func (p *Provider) ReadBlob(
	ctx context.Context,
	path string,
) ([]byte, error) {
	const errCtx = "reading gitlab blob"

	path = forge.CleanPath(path)

	raw, resp, err := p.client.RepositoryFiles.GetRawFile(
		p.repo, path,
		&gl.GetRawFileOptions{
			Ref: gl.Ptr(p.defaultBranch),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: %w",
			errCtx, path, classify(ctx, resp, err),
		)
	}

	return raw, nil
}

// PathExists reports whether a file or a directory
// exists at path on the default branch.
func (p *Provider) PathExists(
	ctx context.Context,
	path string,
) (bool, error) {
	const errCtx = "checking gitlab path"

	path = forge.CleanPath(path)

	ok, err := p.fileExists(ctx, path, p.defaultBranch)
	if err == nil && !ok {
		ok, err = p.dirExists(ctx, path, p.defaultBranch)
	}

	if err != nil {
		return false, fmt.Errorf("%s %q: %w", errCtx, path, err)
	}

	return ok, nil
}

// dirExists asks for one tree entry below path. GitLab
// has no empty directories, so any entry means the
// directory is present.
func (p *Provider) dirExists(
	ctx context.Context,
	path string,
	ref string,
) (bool, error) {
	if path == "" {
		return true, nil
	}

	nodes, resp, err := p.client.Repositories.ListTree(
		p.repo,
		&gl.ListTreeOptions{
			ListOptions: gl.ListOptions{PerPage: 1},
			Path:        gl.Ptr(path),
			Ref:         gl.Ptr(ref),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		cerr := classify(ctx, resp, err)
		if errors.Is(cerr, forge.ErrNotFound) {
			return false, nil
		}

		return false, cerr
	}

	return len(nodes) > 0, nil
}

func (p *Provider) fileExists(
	ctx context.Context,
	path string,
	ref string,
) (bool, error) {
	_, resp, err := p.client.RepositoryFiles.GetFileMetaData(
		p.repo, path,
		&gl.GetFileMetaDataOptions{Ref: gl.Ptr(ref)},
		gl.WithContext(ctx),
	)
	if err != nil {
		cerr := classify(ctx, resp, err)
		if errors.Is(cerr, forge.ErrNotFound) {
			return false, nil
		}

		return false, cerr
	}

	return true, nil
}

// CreateBranch creates name from fromRef and returns
// the head commit id.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	fromRef string,
) (string, error) {
	const errCtx = "creating gitlab branch"

	br, resp, err := p.client.Branches.CreateBranch(
		p.repo,
		&gl.CreateBranchOptions{
			Branch: gl.Ptr(name),
			Ref:    gl.Ptr(fromRef),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		cerr := classify(ctx, resp, err)
		msg := strings.ToLower(cerr.Error())

		switch {
		case strings.Contains(msg, "already exists"):
			cerr = forge.Reclassify(
				cerr,
				forge.ErrValidationFailed,
				forge.ErrBranchExists,
			)
		case strings.Contains(msg, "invalid reference"):
			cerr = forge.Reclassify(
				cerr,
				forge.ErrValidationFailed,
				forge.ErrRefNotFound,
			)
		default:
			cerr = forge.Reclassify(
				cerr,
				forge.ErrNotFound,
				forge.ErrRefNotFound,
			)
		}

		return "", fmt.Errorf(
			"%s %q from %q: %w",
			errCtx, name, fromRef, cerr,
		)
	}

	slog.Info(
		"created branch",
		"branch", name,
		"from", fromRef,
	)

	if br.Commit == nil {
		return name, nil
	}

	return br.Commit.ID, nil
}

// UploadFile commits one file onto a branch through
// the commits API and returns the commit id.
func (p *Provider) UploadFile(
	ctx context.Context,
	up forge.Upload,
) (string, error) {
	const errCtx = "uploading gitlab file"

	path := forge.CleanPath(up.Path)

	action := gl.FileCreate

	if up.Overwrite {
		exists, err := p.fileExists(ctx, path, up.Branch)
		if err != nil {
			return "", fmt.Errorf(
				"%s %q: lookup: %w", errCtx, path, err,
			)
		}

		if exists {
			action = gl.FileUpdate
		}
	}

	opt := &gl.CreateCommitOptions{
		Branch:        gl.Ptr(up.Branch),
		CommitMessage: gl.Ptr(up.Commit.Message),
		Actions: []*gl.CommitActionOptions{
			{
				Action:   gl.Ptr(action),
				FilePath: gl.Ptr(path),
				Content: gl.Ptr(
					base64.StdEncoding.EncodeToString(
						up.Content,
					),
				),
				Encoding: gl.Ptr("base64"),
			},
		},
	}

	if up.Commit.AuthorName != "" {
		opt.AuthorName = gl.Ptr(up.Commit.AuthorName)
		opt.AuthorEmail = gl.Ptr(up.Commit.AuthorEmail)
	}

	commit, resp, err := p.client.Commits.CreateCommit(
		p.repo, opt, gl.WithContext(ctx),
	)
	if err != nil {
		cerr := classify(ctx, resp, err)

		// "A file with this name already exists".
		if action == gl.FileCreate &&
			strings.Contains(
				strings.ToLower(cerr.Error()),
				"already exists",
			) {
			cerr = forge.Reclassify(
				cerr,
				forge.ErrValidationFailed,
				forge.ErrConflict,
			)
		}

		return "", fmt.Errorf(
			"%s %q: %w", errCtx, path, cerr,
		)
	}

	return commit.ID, nil
}

// CreatePullRequest opens a merge request from Head
// into Base. An existing open merge request for the
// same source branch (HTTP 409) is reported as a
// validation failure.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec forge.PullRequestSpec,
) (forge.PullRequest, error) {
	const errCtx = "creating gitlab merge request"

	opts := gl.CreateMergeRequestOptions{
		Title:        &spec.Title,
		Description:  &spec.Body,
		SourceBranch: &spec.Head,
		TargetBranch: &spec.Base,
	}

	created, resp, err := p.client.MergeRequests.CreateMergeRequest(
		p.repo, &opts, gl.WithContext(ctx),
	)
	if err != nil {
		cerr := forge.Reclassify(
			classify(ctx, resp, err),
			forge.ErrConflict,
			forge.ErrValidationFailed,
		)

		slog.Warn(
			"gitlab response",
			"error", cerr,
		)

		return forge.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, cerr,
		)
	}

	slog.Info(
		"created merge request",
		"iid", created.IID,
		"url", created.WebURL,
	)

	return forge.PullRequest{
		Number: int(created.IID),
		URL:    created.WebURL,
	}, nil
}

// classify maps a client-go failure onto the forge
// error taxonomy.
func classify(
	ctx context.Context,
	resp *gl.Response,
	err error,
) error {
	if resp == nil || resp.Response == nil {
		return forge.FromTransport(ctx, err)
	}

	msg := err.Error()

	var er *gl.ErrorResponse
	if errors.As(err, &er) && er.Message != "" {
		msg = er.Message
	}

	ae := forge.FromStatus(
		resp.StatusCode,
		msg,
		forge.ParseRetryAfter(
			resp.Header.Get("Retry-After"), time.Now(),
		),
	)
	ae.Err = err

	return ae
}
