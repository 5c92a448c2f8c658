package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/byte4ever/vkt/commitmsg"
	"github.com/byte4ever/vkt/forge"
	"github.com/byte4ever/vkt/planner"
)

// Defaults applied to zero Config fields.
const (
	DefaultBaseBranch     = "main"
	DefaultCallTimeout    = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
)

var (
	// ErrNoProvider indicates a Config without a
	// forge provider.
	ErrNoProvider = errors.New("provider must be set")

	// ErrEmptyMessage indicates a Request without a
	// commit message.
	ErrEmptyMessage = errors.New("commit message must be set")
)

// Config holds the settings shared by every run. Use
// a Config struct instead of many arguments.
type Config struct {
	// Provider is the forge to submit to.
	Provider forge.Provider

	// AuthorName and AuthorEmail identify the
	// contributor.
	AuthorName  string
	AuthorEmail string

	// Signoff adds a Signed-off-by trailer.
	Signoff bool

	// PRPrefix is prepended to pull request titles.
	PRPrefix string

	// BodyTemplate overrides the pull request body
	// template.
	BodyTemplate string

	// BaseBranch is the default base of new branches.
	BaseBranch string

	// CallTimeout bounds each remote call.
	CallTimeout time.Duration

	// MaxAttempts bounds tries per remote call.
	MaxAttempts int

	// InitialBackoff and MaxBackoff shape the
	// exponential delay between tries.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Now is the clock used for branch names and
	// the pull request body. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.BaseBranch == "" {
		c.BaseBranch = DefaultBaseBranch
	}

	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

func (c Config) policy() retryPolicy {
	return retryPolicy{
		maxAttempts:  c.MaxAttempts,
		callTimeout:  c.CallTimeout,
		initialDelay: c.InitialBackoff,
		maxDelay:     c.MaxBackoff,
		multiplier:   2,
	}
}

// Request is one submission.
type Request struct {
	// Source is a local file or directory.
	Source string
	// Target is the remote directory receiving the
	// files.
	Target string
	// Message is the commit message.
	Message string
	// Branch overrides the derived branch name.
	Branch string
	// Base overrides Config.BaseBranch.
	Base string
	// Force allows overwriting existing remote files
	// and reusing an existing branch.
	Force bool
	// DryRun stops after planning.
	DryRun bool
}

// Plan is a validated submission ready to execute.
type Plan struct {
	Target    string
	Items     []planner.Item
	Conflicts []string
	Branch    string
	Base      string
	// Message is the composed commit message
	// including trailers.
	Message     string
	Title       string
	Body        string
	ContentHash string
	DryRun      bool
	Force       bool
}

// Prepare plans req: it collects the local files, runs
// the conflict gate and composes the branch name,
// commit message and pull request texts. Only
// read-only forge calls are made. On a conflict
// without force the plan is returned together with an
// error matching planner.ErrTargetConflict.
func Prepare(
	ctx context.Context,
	cfg Config,
	req Request,
) (*Plan, error) {
	const errCtx = "preparing submission"

	cfg = cfg.withDefaults()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("%s: %w", errCtx, ErrNoProvider)
	}

	if req.Message == "" {
		return nil, fmt.Errorf("%s: %w", errCtx, ErrEmptyMessage)
	}

	ex := retryingExister{
		provider: cfg.Provider,
		policy:   cfg.policy(),
	}

	items, conflicts, planErr := planner.Plan(
		ctx, ex, req.Source, req.Target, req.Force,
	)
	if items == nil {
		return nil, fmt.Errorf("%s: %w", errCtx, planErr)
	}

	now := cfg.Now()

	pl := &Plan{
		Target:    forge.CleanPath(req.Target),
		Items:     items,
		Conflicts: conflicts,
		Branch:    req.Branch,
		Base:      req.Base,
		DryRun:    req.DryRun,
		Force:     req.Force,
	}

	if pl.Branch == "" {
		pl.Branch = commitmsg.BranchName(req.Message, now)
	}

	if pl.Base == "" {
		pl.Base = cfg.BaseBranch
	}

	pl.ContentHash = planner.ContentHash(items)

	pl.Message = commitmsg.Compose(commitmsg.Params{
		Message:     req.Message,
		Signoff:     cfg.Signoff,
		AuthorName:  cfg.AuthorName,
		AuthorEmail: cfg.AuthorEmail,
		ContentHash: pl.ContentHash,
	})

	pl.Title = commitmsg.Title(cfg.PRPrefix, req.Message)

	files := make([]commitmsg.File, len(items))
	for i, it := range items {
		files[i] = commitmsg.File{
			Path: it.RemotePath,
			Size: it.Size(),
		}
	}

	pl.Body = commitmsg.Body(commitmsg.BodyParams{
		Template:    cfg.BodyTemplate,
		Description: req.Message,
		Files:       files,
		AuthorName:  cfg.AuthorName,
		AuthorEmail: cfg.AuthorEmail,
		Time:        now,
		ContentHash: pl.ContentHash,
	})

	if planErr != nil {
		return pl, fmt.Errorf("%s: %w", errCtx, planErr)
	}

	return pl, nil
}

// Run plans and executes req and returns its single
// Outcome.
func Run(ctx context.Context, cfg Config, req Request) *Outcome {
	// Step 1: Plan and gate on conflicts.
	pl, err := Prepare(ctx, cfg, req)
	if err != nil {
		if pl != nil && errors.Is(err, planner.ErrTargetConflict) {
			out := newOutcome(pl)
			out.Status = StatusAborted
			out.State = StatePlanned
			out.Reason = "remote paths already exist; use force to overwrite"
			out.cause = err

			slog.Warn(
				"submission aborted",
				"conflicts", pl.Conflicts,
			)

			return out
		}

		slog.Error("planning failed", "error", err)

		return &Outcome{
			Status: StatusFailed,
			State:  StatePlanned,
			Stage:  StagePlan,
			Reason: err.Error(),
			cause:  err,
		}
	}

	return Execute(ctx, cfg, pl)
}

// Execute performs the mutating stages of a prepared
// plan. A dry-run plan returns a success preview
// without calling the forge.
func Execute(ctx context.Context, cfg Config, pl *Plan) *Outcome {
	cfg = cfg.withDefaults()
	pol := cfg.policy()
	pv := cfg.Provider

	out := newOutcome(pl)
	out.State = StateValidated

	if pl.DryRun {
		out.Status = StatusSuccess

		slog.Info(
			"dry run, no changes made",
			"branch", pl.Branch,
			"files", len(pl.Items),
		)

		return out
	}

	fail := func(stage Stage, err error) *Outcome {
		out.Status = StatusFailed
		out.Stage = stage
		out.Reason = err.Error()
		out.cause = err

		slog.Error(
			"submission failed",
			"stage", stage,
			"branch", pl.Branch,
			"uploaded", len(out.Uploaded),
			"error", err,
		)

		return out
	}

	// Step 2: Create the branch.
	_, _, err := withRetry(
		ctx, pol, "create branch",
		func(ctx context.Context) (string, error) {
			return pv.CreateBranch(ctx, pl.Branch, pl.Base)
		},
	)

	switch {
	case err == nil:
	case pl.Force && errors.Is(err, forge.ErrBranchExists):
		out.BranchReused = true

		slog.Warn("reusing existing branch", "branch", pl.Branch)
	default:
		return fail(StageBranchCreate, err)
	}

	out.State = StateBranchReady

	// Step 3: Upload files in planner order.
	out.State = StateUploading

	meta := forge.CommitMeta{
		Message:     pl.Message,
		AuthorName:  cfg.AuthorName,
		AuthorEmail: cfg.AuthorEmail,
		Timestamp:   cfg.Now(),
	}

	for _, it := range pl.Items {
		if err := ctx.Err(); err != nil {
			return fail(StageUpload, err)
		}

		up := forge.Upload{
			Branch:    pl.Branch,
			Path:      it.RemotePath,
			Content:   it.Content,
			Commit:    meta,
			Overwrite: pl.Force,
		}

		id, _, err := withRetry(
			ctx, pol, "upload file",
			func(ctx context.Context) (string, error) {
				return pv.UploadFile(ctx, up)
			},
		)
		if err != nil {
			return fail(
				StageUpload,
				fmt.Errorf("%s: %w", it.RemotePath, err),
			)
		}

		out.Uploaded = append(out.Uploaded, it.RemotePath)
		out.CommitID = id

		slog.Info(
			"uploaded file",
			"path", it.RemotePath,
			"size", it.Size(),
		)
	}

	// Step 4: All uploads acknowledged.
	out.State = StateCommitted

	// Step 5: Open the pull request.
	pr, _, err := withRetry(
		ctx, pol, "create pull request",
		func(ctx context.Context) (forge.PullRequest, error) {
			return pv.CreatePullRequest(ctx, forge.PullRequestSpec{
				Head:  pl.Branch,
				Base:  pl.Base,
				Title: pl.Title,
				Body:  pl.Body,
			})
		},
	)
	if err != nil {
		return fail(StagePRCreate, err)
	}

	out.State = StatePROpened
	out.Status = StatusSuccess
	out.PRNumber = pr.Number
	out.PRURL = pr.URL

	slog.Info(
		"submission complete",
		"branch", pl.Branch,
		"pr", pr.Number,
		"url", pr.URL,
	)

	return out
}

func newOutcome(pl *Plan) *Outcome {
	files := make([]File, len(pl.Items))
	for i, it := range pl.Items {
		files[i] = File{
			LocalPath:  it.LocalPath,
			RemotePath: it.RemotePath,
			Size:       it.Size(),
			Hash:       it.Hash,
		}
	}

	return &Outcome{
		DryRun:      pl.DryRun,
		Branch:      pl.Branch,
		Base:        pl.Base,
		Title:       pl.Title,
		ContentHash: pl.ContentHash,
		Files:       files,
		Conflicts:   pl.Conflicts,
	}
}
