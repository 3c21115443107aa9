package cli

import (
	"github.com/spf13/cobra"

	"github.com/tern-cli/tern/pkg/llm"
)

func newUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <backend>",
		Short: "Switch the active backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := llm.BackendID(args[0])
			if err := app.orch.SetActive(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("Active backend: %s\n", id.DisplayName())
			return nil
		},
	}
}
