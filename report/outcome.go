package report

import (
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/byte4ever/vkt/submit"
)

// Outcome renders the result of a submission. Failed
// runs always name the stage, the branch and the
// files uploaded before the failure.
func Outcome(w io.Writer, format Format, out *submit.Outcome) error {
	if done, err := encode(w, format, out); done {
		return err
	}

	p := &printer{w: w}

	switch {
	case out.Status == submit.StatusSuccess && out.DryRun:
		dryRun(p, out)
	case out.Status == submit.StatusSuccess:
		success(p, out)
	case out.Status == submit.StatusAborted:
		aborted(p, out)
	default:
		failed(p, out)
	}

	return p.err
}

func dryRun(p *printer, out *submit.Outcome) {
	p.linef("Dry run: no changes made")
	p.linef("  Branch:       %s (from %s)", out.Branch, out.Base)
	p.linef("  Title:        %s", out.Title)
	p.linef("  Content hash: %s", out.ContentHash)
	p.linef(
		"  Would upload %d file(s), %s:",
		len(out.Files), humanize.IBytes(totalSize(out.Files)),
	)

	overwrites := make(map[string]bool, len(out.Conflicts))
	for _, c := range out.Conflicts {
		overwrites[c] = true
	}

	for _, f := range out.Files {
		note := ""
		if overwrites[f.RemotePath] {
			note = " [overwrite]"
		}

		p.linef(
			"    %s (%s)%s",
			f.RemotePath, humanize.IBytes(uint64(max(f.Size, 0))), note,
		)
	}
}

func success(p *printer, out *submit.Outcome) {
	p.linef(
		"Submitted %d file(s) to branch %s",
		len(out.Files), out.Branch,
	)

	if out.BranchReused {
		p.linef("  (existing branch reused)")
	}

	p.linef("  Pull request: #%d %s", out.PRNumber, out.PRURL)
	p.linef("  Commit:       %s", out.CommitID)
	p.linef("  Content hash: %s", out.ContentHash)

	for _, f := range out.Files {
		p.linef(
			"    %s (%s)",
			f.RemotePath, humanize.IBytes(uint64(max(f.Size, 0))),
		)
	}
}

func aborted(p *printer, out *submit.Outcome) {
	p.linef("Submission aborted: %s", out.Reason)

	if len(out.Conflicts) > 0 {
		p.linef("  Existing remote paths:")

		for _, c := range out.Conflicts {
			p.linef("    %s", c)
		}

		p.linef("  Re-run with --force to overwrite them.")
	}

	p.linef("  No changes were made.")
}

func failed(p *printer, out *submit.Outcome) {
	p.linef("Submission failed at stage %s: %s", out.Stage, out.Reason)
	p.linef("  Branch:   %s", orNone(out.Branch))
	p.linef("  Uploaded: %s", orNone(strings.Join(out.Uploaded, ", ")))

	if out.CommitID != "" {
		p.linef("  Commit:   %s", out.CommitID)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

func totalSize(files []submit.File) uint64 {
	var n uint64

	for _, f := range files {
		n += uint64(max(f.Size, 0))
	}

	return n
}
