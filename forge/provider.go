package forge

import (
	"context"
	"errors"
)

// Pattern: Strategy -- swap git platform without
// changing submit logic.

// Provider is the set of remote operations a git
// hosting platform exposes to vkt. Reads target the
// repository's configured default branch.
type Provider interface {
	// List returns the entries under path. A
	// non-recursive listing returns immediate children
	// only.
	List(
		ctx context.Context,
		path string,
		recursive bool,
	) ([]RemoteEntry, error)

	// ReadBlob returns the raw content of the file at
	// path.
	ReadBlob(ctx context.Context, path string) ([]byte, error)

	// PathExists reports whether path is present. It
	// never returns an error for absence.
	PathExists(ctx context.Context, path string) (bool, error)

	// CreateBranch creates branch name from fromRef and
	// returns an identifier for it (usually the head
	// commit SHA).
	CreateBranch(
		ctx context.Context,
		name string,
		fromRef string,
	) (string, error)

	// UploadFile writes one file onto a branch and
	// returns the resulting commit id.
	UploadFile(ctx context.Context, up Upload) (string, error)

	// CreatePullRequest opens a pull (or merge)
	// request.
	CreatePullRequest(
		ctx context.Context,
		spec PullRequestSpec,
	) (PullRequest, error)
}

// errNotImplemented is returned by Funcs for
// operations without a function.
var errNotImplemented = errors.New("operation not implemented")

// Funcs adapts plain functions to the Provider
// interface. A nil field makes the matching method
// fail with an error wrapping ErrValidationFailed.
type Funcs struct {
	ListFunc func(
		ctx context.Context,
		path string,
		recursive bool,
	) ([]RemoteEntry, error)
	ReadBlobFunc func(
		ctx context.Context,
		path string,
	) ([]byte, error)
	PathExistsFunc func(
		ctx context.Context,
		path string,
	) (bool, error)
	CreateBranchFunc func(
		ctx context.Context,
		name string,
		fromRef string,
	) (string, error)
	UploadFileFunc func(
		ctx context.Context,
		up Upload,
	) (string, error)
	CreatePullRequestFunc func(
		ctx context.Context,
		spec PullRequestSpec,
	) (PullRequest, error)
}

var _ Provider = Funcs{}

// List delegates to ListFunc.
func (f Funcs) List(
	ctx context.Context,
	path string,
	recursive bool,
) ([]RemoteEntry, error) {
	if f.ListFunc == nil {
		return nil, notImplemented("list")
	}

	return f.ListFunc(ctx, path, recursive)
}

// ReadBlob delegates to ReadBlobFunc.
func (f Funcs) ReadBlob(
	ctx context.Context,
	path string,
) ([]byte, error) {
	if f.ReadBlobFunc == nil {
		return nil, notImplemented("read blob")
	}

	return f.ReadBlobFunc(ctx, path)
}

// PathExists delegates to PathExistsFunc.
func (f Funcs) PathExists(
	ctx context.Context,
	path string,
) (bool, error) {
	if f.PathExistsFunc == nil {
		return false, notImplemented("path exists")
	}

	return f.PathExistsFunc(ctx, path)
}

// CreateBranch delegates to CreateBranchFunc.
func (f Funcs) CreateBranch(
	ctx context.Context,
	name string,
	fromRef string,
) (string, error) {
	if f.CreateBranchFunc == nil {
		return "", notImplemented("create branch")
	}

	return f.CreateBranchFunc(ctx, name, fromRef)
}

// UploadFile delegates to UploadFileFunc.
func (f Funcs) UploadFile(
	ctx context.Context,
	up Upload,
) (string, error) {
	if f.UploadFileFunc == nil {
		return "", notImplemented("upload file")
	}

	return f.UploadFileFunc(ctx, up)
}

// CreatePullRequest delegates to
// CreatePullRequestFunc unchanged.
func (f Funcs) CreatePullRequest(
	ctx context.Context,
	spec PullRequestSpec,
) (PullRequest, error) {
	if f.CreatePullRequestFunc == nil {
		return PullRequest{}, notImplemented(
			"create pull request",
		)
	}

	return f.CreatePullRequestFunc(ctx, spec)
}

func notImplemented(op string) error {
	return &APIError{
		Kind:    ErrValidationFailed,
		Message: op + ": " + errNotImplemented.Error(),
	}
}
