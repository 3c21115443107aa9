package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models [query]",
		Short: "List models across all connected backends",
		Long: "List models across all connected backends. An optional query " +
			"filters by case-insensitive substring over model id, name, " +
			"description and backend name.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			entries := app.orch.FindModels(cmd.Context(), query)
			if len(entries) == 0 {
				if query != "" {
					cmd.Printf("No models matching %q\n", query)
				} else {
					cmd.Println("No models found; run: tern backends")
				}
				return nil
			}

			for _, e := range entries {
				line := fmt.Sprintf("%-10s %s", e.Backend, e.Model.ID)
				if e.Model.ContextLength > 0 {
					line += fmt.Sprintf("  ctx=%d", e.Model.ContextLength)
				}
				if e.Model.Quantization != "" {
					line += "  " + e.Model.Quantization
				}
				if e.Model.State != "" {
					line += "  [" + e.Model.State + "]"
				}
				if e.Model.SupportsTools {
					line += "  tools"
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}
