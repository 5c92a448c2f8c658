package cli

import (
	"github.com/spf13/cobra"

	"github.com/byte4ever/vkt/report"
	"github.com/byte4ever/vkt/submit"
)

func newSubmitCmd(a *app) *cobra.Command {
	var req submit.Request

	cmd := &cobra.Command{
		Use:   "submit <LOCAL_PATH>",
		Short: "Upload files and open a pull request",
		Long: `Upload LOCAL_PATH (a file or a directory) below --target on a new
branch and open a pull request against the default branch.

Existing remote files abort the submission unless --force is set.
--dry-run prints the plan without changing anything.`,
		Example: `  vkt submit debug.sh --target scripts --msg "add debug script"
  vkt submit docs/ --target docs --msg "docs: refresh" --force --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pv, err := a.load()
			if err != nil {
				return err
			}

			req.Source = args[0]

			out := submit.Run(cmd.Context(), submit.Config{
				Provider:    pv,
				AuthorName:  cfg.User.Name,
				AuthorEmail: cfg.User.Email,
				Signoff:     cfg.User.AutoSignoff,
				PRPrefix:    cfg.Template.PRPrefix,
				BaseBranch:  cfg.Repo.DefaultBranch,
				CallTimeout: cfg.Remote.Timeout,
				MaxAttempts: cfg.Remote.MaxAttempts,
				Now:         a.env.Now,
			}, req)

			if err := report.Outcome(
				cmd.OutOrStdout(), a.format, out,
			); err != nil {
				return err
			}

			return out.Err()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Target, "target", "t", "", "remote directory receiving the files")
	f.StringVarP(&req.Message, "msg", "m", "", "commit message")
	f.StringVarP(&req.Branch, "branch", "b", "", "branch name (derived from the message by default)")
	f.StringVar(&req.Base, "base", "", "base branch (repo.default_branch by default)")
	f.BoolVarP(&req.Force, "force", "f", false, "overwrite existing remote files and reuse the branch")
	f.BoolVar(&req.DryRun, "dry-run", false, "show the plan without changing anything")

	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("msg")

	return cmd
}
