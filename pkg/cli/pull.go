package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tern-cli/tern/pkg/llm"
)

func newPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model to the Ollama backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := app.registry.GetOrCreate(llm.BackendOllama)
			if err != nil {
				return err
			}
			puller, ok := backend.(llm.ModelPuller)
			if !ok {
				return fmt.Errorf("backend %s cannot pull models", backend.ID())
			}

			cmd.Printf("Pulling %s (this can take a while)...\n", args[0])
			if err := puller.PullModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Pulled %s\n", args[0])
			return nil
		},
	}
}
