package cli

import (
	"github.com/spf13/cobra"

	"github.com/byte4ever/vkt/fetch"
	"github.com/byte4ever/vkt/report"
)

func newListCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "list [PATH]",
		Short: "List a remote directory",
		Long: `List the files and directories under PATH on the default branch,
directories first. PATH defaults to the repository root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			_, pv, err := a.load()
			if err != nil {
				return err
			}

			entries, err := fetch.List(cmd.Context(), pv, path, recursive)
			if err != nil {
				return err
			}

			return report.Entries(
				cmd.OutOrStdout(), a.format, entries, recursive,
			)
		},
	}

	cmd.Flags().BoolVarP(
		&recursive, "recursive", "r", false,
		"list all descendants",
	)

	return cmd
}
