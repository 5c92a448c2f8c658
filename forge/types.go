package forge

import (
	"path"
	"strings"
	"time"
)

// EntryKind distinguishes files from directories in a
// listing.
type EntryKind string

const (
	// KindFile is a regular file (blob).
	KindFile EntryKind = "file"
	// KindDirectory is a directory (tree).
	KindDirectory EntryKind = "directory"
)

// RemoteEntry is one item of a repository listing.
type RemoteEntry struct {
	// Path is forge-relative without a leading slash.
	Path string `json:"path" yaml:"path"`
	// Kind is file or directory.
	Kind EntryKind `json:"kind" yaml:"kind"`
	// Size is the byte size of a file; zero for
	// directories and for providers that do not
	// report it.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// Name returns the last path element.
func (e RemoteEntry) Name() string {
	return path.Base(e.Path)
}

// IsDir reports whether the entry is a directory.
func (e RemoteEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

// CommitMeta carries the commit metadata attached to
// each upload.
type CommitMeta struct {
	// Message is the full commit message including
	// trailers.
	Message string
	// AuthorName and AuthorEmail identify the author
	// and committer.
	AuthorName  string
	AuthorEmail string
	// Timestamp is the authored date.
	Timestamp time.Time
}

// Upload describes a single file write onto a branch.
type Upload struct {
	// Branch receives the commit.
	Branch string
	// Path is the destination path in the repository.
	Path string
	// Content holds the raw file bytes.
	Content []byte
	// Commit is the metadata of the resulting commit.
	Commit CommitMeta
	// Overwrite allows replacing a file already
	// present on the branch. When false an existing
	// file fails with ErrConflict.
	Overwrite bool
}

// PullRequestSpec holds the parameters of a pull
// request to open from Head into Base.
type PullRequestSpec struct {
	Head  string
	Base  string
	Title string
	Body  string
}

// PullRequest identifies an opened pull or merge
// request.
type PullRequest struct {
	Number int    `json:"number" yaml:"number"`
	URL    string `json:"url" yaml:"url"`
}

// CleanPath normalizes a repository path: slashes are
// trimmed at both ends and "." means the root.
func CleanPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}

	return path.Clean(p)
}

// JoinPath joins repository path elements, ignoring
// empty ones.
func JoinPath(elem ...string) string {
	return CleanPath(path.Join(elem...))
}
