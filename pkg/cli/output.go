package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sec-agent/internal/domain"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	switch output {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use %q, %q or %q", output, OutputText, OutputJSON, OutputYAML)
}

// printStructured writes v as JSON or YAML. It reports false for text
// output, which each command renders itself.
func printStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputYAML:
		// Round trip through JSON so YAML keys follow the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return true, enc.Encode(generic)
	default:
		return false, nil
	}
}

func printVerdict(w io.Writer, r *domain.FinalResult) {
	fmt.Fprintf(w, "Time range:  %s\n", r.TimeRange)
	fmt.Fprintf(w, "Risk:        %t (%s)\n", r.HasRisk, r.RiskLevel)
	if r.RiskType != nil {
		fmt.Fprintf(w, "Risk type:   %s\n", *r.RiskType)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(r.Analysis))
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}
