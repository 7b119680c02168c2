package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{"version": version, "commit": commit}
			if ok, err := printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), info); ok {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "secagent version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
