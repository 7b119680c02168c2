package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(g *globals) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "analyze <question>",
		Short: "Ask the agent whether the logs show a security risk",
		Example: `  secagent analyze "were there any attacks in the last 8 hours?"
  secagent analyze "brute force attempts?" --start "2025-03-04 00:00:00" --end "2025-03-04 12:00:00"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (start == "") != (end == "") {
				return fmt.Errorf("--start and --end must be given together")
			}
			result, err := g.client.Analyze(cmd.Context(), strings.Join(args, " "), start, end)
			if err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), result); ok {
				return err
			}
			printVerdict(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Window start (YYYY-MM-DD HH:MM:SS), skips time parsing")
	cmd.Flags().StringVar(&end, "end", "", "Window end (YYYY-MM-DD HH:MM:SS)")
	return cmd
}

func newAskCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a free-form question answered from the log database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ans, err := g.client.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if ok, err := printStructured(cmd.OutOrStdout(), getOutputFormat(cmd), ans); ok {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Query:   %s\n", ans.Query)
			fmt.Fprintf(w, "Records: %d\n\n", len(ans.Records))
			fmt.Fprintln(w, ans.Answer)
			return nil
		},
	}
}
