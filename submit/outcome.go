package submit

import (
	"errors"
	"fmt"
)

// ErrAborted indicates a run stopped before any
// mutating call.
var ErrAborted = errors.New("submission aborted")

// Status discriminates an Outcome.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusAborted Status = "aborted"
	StatusFailed  Status = "failed"
)

// State is a step of the submission state machine.
type State string

// States in the order a run reaches them.
const (
	StatePlanned     State = "planned"
	StateValidated   State = "validated"
	StateBranchReady State = "branch-ready"
	StateUploading   State = "uploading"
	StateCommitted   State = "committed"
	StatePROpened    State = "pr-opened"
)

// Stage names the step a failed run stopped in.
type Stage string

// Failure stages.
const (
	StagePlan         Stage = "plan"
	StageBranchCreate Stage = "branch-create"
	StageUpload       Stage = "upload"
	StagePRCreate     Stage = "pr-create"
)

// File describes one planned upload in an Outcome.
type File struct {
	LocalPath  string `json:"local_path" yaml:"local_path"`
	RemotePath string `json:"remote_path" yaml:"remote_path"`
	Size       int64  `json:"size" yaml:"size"`
	Hash       string `json:"hash" yaml:"hash"`
}

// Outcome is the single result of a run.
type Outcome struct {
	Status Status `json:"status" yaml:"status"`
	// State is the last state reached.
	State State `json:"state" yaml:"state"`
	// Stage is set for failed runs.
	Stage Stage `json:"stage,omitempty" yaml:"stage,omitempty"`

	DryRun bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Base   string `json:"base,omitempty" yaml:"base,omitempty"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`

	// CommitID is the id returned by the last
	// acknowledged upload.
	CommitID string `json:"commit_id,omitempty" yaml:"commit_id,omitempty"`
	PRNumber int    `json:"pr_number,omitempty" yaml:"pr_number,omitempty"`
	PRURL    string `json:"pr_url,omitempty" yaml:"pr_url,omitempty"`

	ContentHash string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Files       []File `json:"files,omitempty" yaml:"files,omitempty"`

	// Uploaded lists the remote paths acknowledged
	// before a failure, in upload order.
	Uploaded []string `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
	// Conflicts lists remote paths that already
	// existed at planning time.
	Conflicts []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	// BranchReused is set when force reused an
	// existing branch.
	BranchReused bool `json:"branch_reused,omitempty" yaml:"branch_reused,omitempty"`

	// Reason explains an abort or failure.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	cause error
}

// Succeeded reports whether the run succeeded. A dry
// run preview counts as success.
func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Cause returns the error behind an abort or failure.
func (o *Outcome) Cause() error {
	return o.cause
}

// Err returns nil on success. Aborts wrap ErrAborted
// and failures wrap their cause, so callers can test
// both with errors.Is.
func (o *Outcome) Err() error {
	switch o.Status {
	case StatusSuccess:
		return nil
	case StatusAborted:
		if o.cause == nil {
			return fmt.Errorf("%w: %s", ErrAborted, o.Reason)
		}

		return fmt.Errorf("%w: %w", ErrAborted, o.cause)
	default:
		return fmt.Errorf(
			"submission failed at %s: %w", o.Stage, o.cause,
		)
	}
}
