package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/byte4ever/vkt/fetch"
	"github.com/byte4ever/vkt/report"
)

// ErrIncompleteDownload indicates a directory download
// in which some files failed.
var ErrIncompleteDownload = errors.New("some files were not downloaded")

func newGetCmd(a *app) *cobra.Command {
	var opts fetch.Options

	cmd := &cobra.Command{
		Use:   "get <REMOTE_PATH>",
		Short: "Download a remote file or directory",
		Long: `Download REMOTE_PATH from the default branch. A file is saved as
<output>/<name>; a directory is downloaded recursively below
<output>/<name>. Existing local files are kept unless --force is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pv, err := a.load()
			if err != nil {
				return err
			}

			results, dlErr := fetch.Download(cmd.Context(), pv, args[0], opts)

			if err := report.Downloads(
				cmd.OutOrStdout(), a.format, results,
			); err != nil {
				return err
			}

			if dlErr != nil {
				return dlErr
			}

			failed := 0

			for _, r := range results {
				if !r.OK() {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf(
					"%w: %d of %d failed",
					ErrIncompleteDownload, failed, len(results),
				)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", ".", "local output directory")
	f.BoolVarP(&opts.Force, "force", "f", false, "overwrite existing local files")
	f.IntVar(&opts.Limit, "parallel", fetch.DefaultLimit, "concurrent downloads")

	return cmd
}
