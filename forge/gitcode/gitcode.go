package gitcode

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/vkt/forge"
)

// DefaultAPIURL is the public GitCode API root.
const DefaultAPIURL = "https://api.gitcode.com/api/v5"

const defaultTimeout = 30 * time.Second

// Config holds the settings needed to create a GitCode
// provider.
type Config struct {
	// APIURL is the API root (e.g.
	// "https://api.gitcode.com/api/v5").
	APIURL string
	// Repo is the project id in "owner/repo" form.
	Repo string
	// AccessToken is sent as a bearer token.
	AccessToken string
	// DefaultBranch is the ref used for reads.
	// Defaults to "main".
	DefaultBranch string
	// HTTPClient is an optional transport. A client
	// with a 30 second timeout is used when nil.
	HTTPClient *http.Client
}

// Provider talks to GitCode.
//
// Pattern: Strategy -- implements forge.Provider.
type Provider struct {
	client        *http.Client
	baseURL       string
	token         string
	owner         string
	repo          string
	defaultBranch string
}

var _ forge.Provider = (*Provider)(nil)

type createBranchRequest struct {
	BranchName string `json:"branch_name"`
	Refs       string `json:"refs"`
}

type branchResponse struct {
	Name   string `json:"name"`
	Commit struct {
		ID     string `json:"id"`
		SHA    string `json:"sha"`
		Commit *struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	} `json:"commit"`
}

func (b *branchResponse) commitID() string {
	switch {
	case b.Commit.SHA != "":
		return b.Commit.SHA
	case b.Commit.ID != "":
		return b.Commit.ID
	case b.Commit.Commit != nil:
		return b.Commit.Commit.SHA
	}

	return ""
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type fileRequest struct {
	Message     string `json:"message"`
	Content     string `json:"content"`
	Branch      string `json:"branch"`
	SHA         string `json:"sha,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

type fileCommitResponse struct {
	Commit struct {
		SHA string `json:"sha"`
		ID  string `json:"id"`
	} `json:"commit"`
}

type pullRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

type pullResponse struct {
	Number  int    `json:"number"`
	IID     int    `json:"iid"`
	HTMLURL string `json:"html_url"`
	WebURL  string `json:"web_url"`
}

// NewProvider validates cfg and returns a Provider
// ready to use.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitcode provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" ||
		strings.Contains(repo, "/") {
		return nil, fmt.Errorf(
			"%s: repo must be in owner/repo form, got %q",
			errCtx, cfg.Repo,
		)
	}

	base := cfg.APIURL
	if base == "" {
		base = DefaultAPIURL
	}

	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf(
			"%s: parse api url: %w", errCtx, err,
		)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	return &Provider{
		client:        client,
		baseURL:       strings.TrimRight(base, "/"),
		token:         cfg.AccessToken,
		owner:         owner,
		repo:          repo,
		defaultBranch: branch,
	}, nil
}

// List returns the entries under path on the default
// branch. Non-recursive listings hold the immediate
// children only.
func (p *Provider) List(
	ctx context.Context,
	path string,
	recursive bool,
) ([]forge.RemoteEntry, error) {
	const errCtx = "listing gitcode path"

	path = forge.CleanPath(path)

	var paths []string

	err := p.do(
		ctx, http.MethodGet, p.repoPath("file_list"),
		url.Values{"ref_name": {p.defaultBranch}},
		nil, &paths,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: %w", errCtx, path, err,
		)
	}

	entries := Children(paths, path, recursive)
	if len(entries) == 0 && path != "" {
		return nil, fmt.Errorf(
			"%s %q: %w",
			errCtx, path,
			&forge.APIError{
				Kind:    forge.ErrNotFound,
				Message: "no such path: " + path,
			},
		)
	}

	return entries, nil
}

// Children rebuilds a listing of prefix from the flat
// path list returned by file_list. A path ending in
// "/" is a directory. With recursive set every path
// below prefix is returned; otherwise only immediate
// children, a child being a directory when deeper
// paths exist under it. A prefix naming a file yields
// that file alone. The result is sorted by path.
func Children(
	paths []string,
	prefix string,
	recursive bool,
) []forge.RemoteEntry {
	prefix = forge.CleanPath(prefix)

	seen := make(map[string]forge.EntryKind)

	for _, raw := range paths {
		isDir := strings.HasSuffix(raw, "/")

		p := forge.CleanPath(raw)
		if p == "" {
			continue
		}

		if p == prefix {
			if !isDir {
				return []forge.RemoteEntry{
					{Path: p, Kind: forge.KindFile},
				}
			}

			continue
		}

		rel := p
		if prefix != "" {
			var ok bool

			rel, ok = strings.CutPrefix(p, prefix+"/")
			if !ok {
				continue
			}
		}

		if recursive {
			// Intermediate directories are implied by
			// deeper paths even when not listed.
			parts := strings.Split(rel, "/")
			for i := 1; i < len(parts); i++ {
				dir := forge.JoinPath(
					prefix, strings.Join(parts[:i], "/"),
				)
				seen[dir] = forge.KindDirectory
			}

			if _, dup := seen[p]; !dup || isDir {
				seen[p] = kindOf(isDir)
			}

			continue
		}

		name, _, nested := strings.Cut(rel, "/")
		child := forge.JoinPath(prefix, name)

		if nested || isDir {
			seen[child] = forge.KindDirectory
		} else if _, dup := seen[child]; !dup {
			seen[child] = forge.KindFile
		}
	}

	entries := make([]forge.RemoteEntry, 0, len(seen))
	for p, k := range seen {
		entries = append(entries, forge.RemoteEntry{
			Path: p,
			Kind: k,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries
}

func kindOf(isDir bool) forge.EntryKind {
	if isDir {
		return forge.KindDirectory
	}

	return forge.KindFile
}

// ReadBlob returns the decoded content of the file at
// path on the default branch.
func (p *Provider) ReadBlob(
	ctx context.Context,
	path string,
) ([]byte, error) {
	const errCtx = "reading gitcode blob"

	path = forge.CleanPath(path)

	c, err := p.contents(ctx, path, p.defaultBranch)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: %w", errCtx, path, err,
		)
	}

	if c.Type != "" && c.Type != "file" {
		return nil, fmt.Errorf(
			"%s %q: %w",
			errCtx, path,
			&forge.APIError{
				Kind:    forge.ErrNotFound,
				Message: "not a file: " + path,
			},
		)
	}

	// Some deployments wrap base64 at 60 columns.
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}

		return r
	}, c.Content)

	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %q: decode content: %w", errCtx, path, err,
		)
	}

	return data, nil
}

// PathExists reports whether path exists on the
// default branch, using the file_list name filter.
func (p *Provider) PathExists(
	ctx context.Context,
	path string,
) (bool, error) {
	const errCtx = "checking gitcode path"

	path = forge.CleanPath(path)

	var paths []string

	err := p.do(
		ctx, http.MethodGet, p.repoPath("file_list"),
		url.Values{
			"file_name": {path},
			"ref_name":  {p.defaultBranch},
		},
		nil, &paths,
	)
	if err != nil {
		if errors.Is(err, forge.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf(
			"%s %q: %w", errCtx, path, err,
		)
	}

	for _, candidate := range paths {
		if forge.CleanPath(candidate) == path {
			return true, nil
		}
	}

	return false, nil
}

// CreateBranch creates name from fromRef and returns
// the head commit id.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	fromRef string,
) (string, error) {
	const errCtx = "creating gitcode branch"

	var out branchResponse

	err := p.do(
		ctx, http.MethodPost, p.repoPath("branches"), nil,
		createBranchRequest{BranchName: name, Refs: fromRef},
		&out,
	)
	if err != nil {
		err = forge.Reclassify(
			err, forge.ErrConflict, forge.ErrBranchExists,
		)
		err = forge.Reclassify(
			err, forge.ErrNotFound, forge.ErrRefNotFound,
		)

		if errors.Is(err, forge.ErrValidationFailed) &&
			strings.Contains(
				strings.ToLower(err.Error()), "exist",
			) {
			err = forge.Reclassify(
				err,
				forge.ErrValidationFailed,
				forge.ErrBranchExists,
			)
		}

		return "", fmt.Errorf(
			"%s %q from %q: %w", errCtx, name, fromRef, err,
		)
	}

	slog.Info(
		"created branch",
		"branch", name,
		"from", fromRef,
	)

	return out.commitID(), nil
}

// UploadFile writes one file onto a branch and returns
// the resulting commit id. New files are POSTed;
// overwrites PUT with the current blob sha.
func (p *Provider) UploadFile(
	ctx context.Context,
	up forge.Upload,
) (string, error) {
	const errCtx = "uploading gitcode file"

	path := forge.CleanPath(up.Path)

	req := fileRequest{
		Message:     up.Commit.Message,
		Content:     base64.StdEncoding.EncodeToString(up.Content),
		Branch:      up.Branch,
		AuthorName:  up.Commit.AuthorName,
		AuthorEmail: up.Commit.AuthorEmail,
	}

	method := http.MethodPost

	if up.Overwrite {
		c, err := p.contents(ctx, path, up.Branch)

		switch {
		case err == nil:
			req.SHA = c.SHA
			method = http.MethodPut
		case !errors.Is(err, forge.ErrNotFound):
			return "", fmt.Errorf(
				"%s %q: lookup: %w", errCtx, path, err,
			)
		}
	}

	var out fileCommitResponse

	err := p.do(
		ctx, method, p.repoPath("contents", path), nil,
		req, &out,
	)
	if err != nil {
		if method == http.MethodPost &&
			errors.Is(err, forge.ErrValidationFailed) &&
			strings.Contains(
				strings.ToLower(err.Error()), "exist",
			) {
			err = forge.Reclassify(
				err,
				forge.ErrValidationFailed,
				forge.ErrConflict,
			)
		}

		return "", fmt.Errorf(
			"%s %q: %w", errCtx, path, err,
		)
	}

	if out.Commit.SHA != "" {
		return out.Commit.SHA, nil
	}

	return out.Commit.ID, nil
}

// CreatePullRequest opens a pull request from Head
// into Base.
func (p *Provider) CreatePullRequest(
	ctx context.Context,
	spec forge.PullRequestSpec,
) (forge.PullRequest, error) {
	const errCtx = "creating gitcode pull request"

	var out pullResponse

	err := p.do(
		ctx, http.MethodPost, p.repoPath("pulls"), nil,
		pullRequest{
			Title: spec.Title,
			Head:  spec.Head,
			Base:  spec.Base,
			Body:  spec.Body,
		},
		&out,
	)
	if err != nil {
		return forge.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	pr := forge.PullRequest{
		Number: out.Number,
		URL:    out.HTMLURL,
	}

	if pr.Number == 0 {
		pr.Number = out.IID
	}

	if pr.URL == "" {
		pr.URL = out.WebURL
	}

	slog.Info(
		"created pull request",
		"number", pr.Number,
		"url", pr.URL,
	)

	return pr, nil
}

func (p *Provider) contents(
	ctx context.Context,
	path string,
	ref string,
) (*contentResponse, error) {
	var c contentResponse

	err := p.do(
		ctx, http.MethodGet, p.repoPath("contents", path),
		url.Values{"ref": {ref}}, nil, &c,
	)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (p *Provider) repoPath(elem ...string) string {
	segs := []string{
		"repos",
		url.PathEscape(p.owner),
		url.PathEscape(p.repo),
	}

	for _, e := range elem {
		for _, s := range strings.Split(e, "/") {
			segs = append(segs, url.PathEscape(s))
		}
	}

	return strings.Join(segs, "/")
}

// do sends one API request. in, when non-nil, is sent
// as the JSON body; a 2xx response body is decoded
// into out. Failures are classified *forge.APIError
// values.
func (p *Provider) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	in any,
	out any,
) error {
	u := p.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set(
			"Content-Type",
			"application/json; charset=utf-8",
		)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return forge.FromTransport(ctx, err)
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return forge.FromTransport(ctx, err)
	}

	slog.Debug(
		"gitcode response",
		"method", method,
		"path", path,
		"status", resp.Status,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return forge.FromStatus(
			resp.StatusCode,
			errorMessage(rb),
			forge.ParseRetryAfter(
				resp.Header.Get("Retry-After"), time.Now(),
			),
		)
	}

	if out == nil || len(bytes.TrimSpace(rb)) == 0 {
		return nil
	}

	if err := json.Unmarshal(rb, out); err != nil {
		return fmt.Errorf(
			"decode %s response: %w", path, err,
		)
	}

	return nil
}

// errorMessage extracts the "message" or "error_message"
// field of an error body, falling back to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Message      string `json:"message"`
		ErrorMessage string `json:"error_message"`
	}

	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}

		if e.ErrorMessage != "" {
			return e.ErrorMessage
		}
	}

	const limit = 200

	msg := strings.TrimSpace(string(body))
	if len(msg) > limit {
		msg = msg[:limit] + "..."
	}

	return msg
}
