package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/vkt/forge"
)

// Config holds the settings needed to create a GitHub
// provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// DefaultBranch is the ref used for reads.
	// Defaults to "main".
	DefaultBranch string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// BaseURL is an optional API root (e.g.
	// "https://api.github.com/"). It takes precedence
	// over EnterpriseHost.
	BaseURL string
	// HTTPClient is an optional transport.
	HTTPClient *http.Client
}

// Provider talks to GitHub.
//
// Pattern: Strategy -- implements forge.Provider.
type Provider struct {
	client        *gh.Client
	repoOwner     string
	repo          string
	defaultBranch string
}

var _ forge.Provider = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to use.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(cfg.HTTPClient).
		WithAuthToken(cfg.AccessToken)

	switch {
	case cfg.BaseURL != "":
		base, err := url.Parse(
			strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base url: %w", errCtx, err,
			)
		}

		client.BaseURL = base
		client.UploadURL = base

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	return &Provider{
		client:        client,
		repoOwner:     cfg.RepoOwner,
		repo:          cfg.Repo,
		defaultBranch: branch,
	}, nil
}

// List returns the contents of path. Recursive
// listings use the git trees API on the default
// branch.
func (p *Provider) List(
	ctx context.Context,
	path string,
	recursive bool,
) ([]forge.RemoteEntry, error) {
	const errCtx = "listing github path"

	path = forge.CleanPath(path)

	if recursive {
		entries, err := p.listTree(ctx, path)
		if err != nil {
			return nil, fmt.Errorf(
				"%s %q: %w", errCtx, path, err,
			)
		}

		return entries, nil
	}

	file, dir, resp, err := p.client.Repositories.GetContents(
		ctx, p.repoOwner, p.repo, path,
		&gh.RepositoryContentGetOptions{
			Ref: p.defaultBranch,
		},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: %w",
			errCtx, path, classify(ctx, resp, err),
		)
	}

	if file != nil {
		return []forge.RemoteEntry{toEntry(file)}, nil
	}

	entries := make([]forge.RemoteEntry, 0, len(dir))
	for _, rc := range dir {
		entries = append(entries, toEntry(rc))
	}

	return entries, nil
}

// listTree walks the whole default branch tree and
// keeps the entries at or below path.
func (p *Provider) listTree(
	ctx context.Context,
	path string,
) ([]forge.RemoteEntry, error) {
	tree, resp, err := p.client.Git.GetTree(
		ctx, p.repoOwner, p.repo, p.defaultBranch, true,
	)
	if err != nil {
		return nil, classify(ctx, resp, err)
	}

	if tree.GetTruncated() {
		slog.Warn(
			"github tree listing truncated",
			"path", path,
			"entries", len(tree.Entries),
		)
	}

	prefix := path + "/"

	var entries []forge.RemoteEntry

	for _, te := range tree.Entries {
		tp := te.GetPath()

		switch {
		case path == "":
		case tp == path && te.GetType() == "blob":
			// Listing a file yields the file itself.
		case strings.HasPrefix(tp, prefix):
		default:
			continue
		}

		en := forge.RemoteEntry{
			Path: tp,
			Kind: forge.KindFile,
			Size: int64(te.GetSize()),
		}

		if te.GetType() == "tree" {
			en.Kind = forge.KindDirectory
			en.Size = 0
		}

		entries = append(entries, en)
	}

	if path != "" && len(entries) == 0 {
		return nil, &forge.APIError{
			Kind:    forge.ErrNotFound,
			Message: path,
		}
	}

	return entries, nil
}

// ReadBlob returns the raw bytes of the file at path
// on the default branch.
func (p *Provider) ReadBlob(
	ctx context.Context,
	path string,
) ([]byte, error) {
	const errCtx = "reading github blob"

	path = forge.CleanPath(path)

	file, _, resp, err := p.client.Repositories.GetContents(
		ctx, p.repoOwner, p.repo, path,
		&gh.RepositoryContentGetOptions{
			Ref: p.defaultBranch,
		},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: %w",
			errCtx, path, classify(ctx, resp, err),
		)
	}

	if file == nil {
		return nil, fmt.Errorf(
			"%s %q: %w", errCtx, path,
			&forge.APIError{
				Kind:    forge.ErrNotFound,
				Message: "path is a directory",
			},
		)
	}

	// Files above 1 MB come back without inline
	// content; fetch the blob by SHA instead.
	if file.GetEncoding() == "none" ||
		(file.Content == nil && file.GetSize() > 0) {
		raw, resp, err := p.client.Git.GetBlobRaw(
			ctx, p.repoOwner, p.repo, file.GetSHA(),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s %q: raw blob: %w",
				errCtx, path, classify(ctx, resp, err),
			)
		}

		return raw, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: decode: %w", errCtx, path, err,
		)
	}

	return []byte(content), nil
}

// PathExists reports whether path exists on the
// default branch.
func (p *Provider) PathExists(
	ctx context.Context,
	path string,
) (bool, error) {
	sha, err := p.lookupSHA(
		ctx, forge.CleanPath(path), p.defaultBranch,
	)
	if err != nil {
		return false, fmt.Errorf(
			"checking github path %q: %w", path, err,
		)
	}

	return sha != "", nil
}

// lookupSHA returns the blob SHA of path on ref, or
// "" when the path is absent. Directories report a
// placeholder so that they count as present.
func (p *Provider) lookupSHA(
	ctx context.Context,
	path string,
	ref string,
) (string, error) {
	file, dir, resp, err := p.client.Repositories.GetContents(
		ctx, p.repoOwner, p.repo, path,
		&gh.RepositoryContentGetOptions{Ref: ref},
	)
	if err != nil {
		cerr := classify(ctx, resp, err)
		if errors.Is(cerr, forge.ErrNotFound) {
			return "", nil
		}

		return "", cerr
	}

	if file != nil {
		return file.GetSHA(), nil
	}

	if dir != nil {
		return "tree", nil
	}

	return "", nil
}

// CreateBranch creates refs/heads/name pointing at
// the head of fromRef and returns its SHA.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	fromRef string,
) (string, error) {
	const errCtx = "creating github branch"

	base, resp, err := p.client.Git.GetRef(
		ctx, p.repoOwner, p.repo, "heads/"+fromRef,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %q from %q: %w",
			errCtx, name, fromRef,
			forge.Reclassify(
				classify(ctx, resp, err),
				forge.ErrNotFound,
				forge.ErrRefNotFound,
			),
		)
	}

	ref, resp, err := p.client.Git.CreateRef(
		ctx, p.repoOwner, p.repo,
		&gh.Reference{
			Ref: gh.Ptr("refs/heads/" + name),
			Object: &gh.GitObject{
				SHA: base.GetObject().SHA,
			},
		},
	)
	if err != nil {
		// HTTP 422: "Reference already exists".
		return "", fmt.Errorf(
			"%s %q: %w",
			errCtx, name,
			forge.Reclassify(
				classify(ctx, resp, err),
				forge.ErrValidationFailed,
				forge.ErrBranchExists,
			),
		)
	}

	slog.Info(
		"created branch",
		"branch", name,
		"from", fromRef,
	)

	return ref.GetObject().GetSHA(), nil
}

// UploadFile creates (or, with Overwrite, updates)
// one file on a branch. GitHub commits every content
// write, so the returned id is that commit's SHA.
func (p *Provider) UploadFile(
	ctx context.Context,
	up forge.Upload,
) (string, error) {
	const errCtx = "uploading github file"

	path := forge.CleanPath(up.Path)

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(up.Commit.Message),
		Content: up.Content,
		Branch:  gh.Ptr(up.Branch),
	}

	if up.Commit.AuthorName != "" {
		author := &gh.CommitAuthor{
			Name:  gh.Ptr(up.Commit.AuthorName),
			Email: gh.Ptr(up.Commit.AuthorEmail),
		}

		if !up.Commit.Timestamp.IsZero() {
			author.Date = &gh.Timestamp{
				Time: up.Commit.Timestamp,
			}
		}

		opts.Author = author
		opts.Committer = author
	}

	write := p.client.Repositories.CreateFile

	if up.Overwrite {
		sha, err := p.lookupSHA(ctx, path, up.Branch)
		if err != nil {
			return "", fmt.Errorf(
				"%s %q: lookup sha: %w",
				errCtx, path, err,
			)
		}

		if sha != "" {
			opts.SHA = gh.Ptr(sha)
			write = p.client.Repositories.UpdateFile
		}
	}

	res, resp, err := write(
		ctx, p.repoOwner, p.repo, path, opts,
	)
	if err != nil {
		cerr := classify(ctx, resp, err)

		// A create without SHA on an existing file is
		// rejected with 422 mentioning the SHA.
		if opts.SHA == nil &&
			errors.Is(cerr, forge.ErrValidationFailed) &&
			strings.Contains(
				strings.ToLower(cerr.Error()), "sha",
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

	return res.Commit.GetSHA(), nil
}

// CreatePullRequest opens a pull request from Head
// into Base.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec forge.PullRequestSpec,
) (forge.PullRequest, error) {
	const errCtx = "creating github pull request"

	pr := &gh.NewPullRequest{
		Title: &spec.Title,
		Head:  &spec.Head,
		Base:  &spec.Base,
		Body:  &spec.Body,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.repoOwner, p.repo, pr,
	)
	if err != nil {
		cerr := classify(ctx, resp, err)

		slog.Warn(
			"github response",
			"error", cerr,
		)

		return forge.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, cerr,
		)
	}

	slog.Info(
		"created pull request",
		"number", created.GetNumber(),
		"url", created.GetHTMLURL(),
	)

	return forge.PullRequest{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
	}, nil
}

// classify maps a go-github failure onto the forge
// error taxonomy.
func classify(
	ctx context.Context,
	resp *gh.Response,
	err error,
) error {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return &forge.APIError{
			Kind:       forge.ErrRateLimited,
			Status:     statusOf(resp),
			Message:    rle.Message,
			RetryAfter: time.Until(rle.Rate.Reset.Time),
			Err:        err,
		}
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &forge.APIError{
			Kind:       forge.ErrRateLimited,
			Status:     statusOf(resp),
			Message:    abuse.Message,
			RetryAfter: abuse.GetRetryAfter(),
			Err:        err,
		}
	}

	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		msg := er.Message
		for _, fe := range er.Errors {
			if fe.Message != "" {
				msg += "; " + fe.Message
			}
		}

		ae := forge.FromStatus(
			er.Response.StatusCode,
			msg,
			forge.ParseRetryAfter(
				er.Response.Header.Get("Retry-After"),
				time.Now(),
			),
		)
		ae.Err = err

		return ae
	}

	if status := statusOf(resp); status != 0 {
		ae := forge.FromStatus(status, err.Error(), 0)
		ae.Err = err

		return ae
	}

	return forge.FromTransport(ctx, err)
}

func statusOf(resp *gh.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}

	return resp.StatusCode
}

func toEntry(rc *gh.RepositoryContent) forge.RemoteEntry {
	en := forge.RemoteEntry{
		Path: rc.GetPath(),
		Kind: forge.KindFile,
		Size: int64(rc.GetSize()),
	}

	if rc.GetType() == "dir" {
		en.Kind = forge.KindDirectory
		en.Size = 0
	}

	return en
}
