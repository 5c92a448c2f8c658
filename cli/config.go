package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byte4ever/vkt/config"
	"github.com/byte4ever/vkt/report"
)

func newConfigCmd(a *app) *cobra.Command {
	var (
		list     bool
		initFile bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "config [KEY [VALUE]]",
		Short: "Show or edit the configuration",
		Long: `Without arguments (or with --list) print every setting, token masked.
With KEY print one value; with KEY and VALUE store it in the config
file. --init writes a commented example file.

Keys: ` + strings.Join(config.Keys, ", "),
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			switch {
			case initFile:
				if err := config.WriteExample(path, force); err != nil {
					return err
				}

				_, err := fmt.Fprintf(w, "Wrote example configuration to %s\n", path)

				return err

			case len(args) == 2:
				if err := config.Set(path, args[0], args[1]); err != nil {
					return err
				}

				cfg, err := config.Decode(path)
				if err != nil {
					return err
				}

				v, err := cfg.Value(args[0])
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(w, "%s = %s\n", args[0], v)

				return err
			}

			cfg, err := config.Decode(path)
			if err != nil {
				return err
			}

			if list || len(args) == 0 {
				return report.Settings(w, a.format, path, cfg.Settings())
			}

			v, err := cfg.Value(args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(w, v)

			return err
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&list, "list", "l", false, "print every setting")
	f.BoolVar(&initFile, "init", false, "write an example config file")
	f.BoolVarP(&force, "force", "f", false, "with --init, replace an existing file")

	return cmd
}
