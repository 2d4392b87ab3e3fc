package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <url>",
		Short: "Shows how a URL is classified, searched and decided",
		Long: `Evaluates one URL without serving it and prints the parsed route, any
keyword upgrade, the normalized condition, the hit count and the final
directive as JSON. Stored index decisions are read but not changed.`,
		Args: cobra.ExactArgs(1),
		RunE: runExplainCommand,
	}
}

func runExplainCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(cmd.Context(), appInstance)

	out, err := appInstance.Explain(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("explain %s: %w", args[0], err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
