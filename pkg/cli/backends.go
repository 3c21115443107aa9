package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tern-cli/tern/pkg/orchestrator"
)

func newBackendsCmd(app *App) *cobra.Command {
	var showSetup bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Probe every backend and report its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := app.orch.DetectAll(cmd.Context())
			_, activeID, _ := app.orch.Active()

			for _, r := range results {
				marker := " "
				if r.Backend == activeID {
					marker = "*"
				}
				state := "unavailable"
				switch {
				case r.Connected():
					state = "connected"
				case r.Available:
					state = "available"
				}

				line := fmt.Sprintf("%s %-10s %-12s", marker, r.Backend, state)
				if r.Status.Version != "" {
					line += " v" + r.Status.Version
				}
				if r.Status.Endpoint != "" {
					line += "  " + r.Status.Endpoint
				}
				if len(r.Models) > 0 {
					line += fmt.Sprintf("  (%d models", len(r.Models))
					if r.Status.LoadedModels > 0 {
						line += fmt.Sprintf(", %d loaded", r.Status.LoadedModels)
					}
					line += ")"
				}
				cmd.Println(line)

				if r.Status.Error != "" {
					cmd.Printf("    %s\n", r.Status.Error)
				}
				if showSetup && !r.Connected() {
					backend, err := app.registry.GetOrCreate(r.Backend)
					if err == nil {
						reqs := backend.ConfigRequirements()
						if reqs.Setup != "" {
							cmd.Printf("    setup: %s\n", reqs.Setup)
						}
						for _, key := range reqs.Required {
							cmd.Printf("    required: %s - %s\n", key.Name, key.Description)
						}
					}
				}
			}

			summary := orchestrator.Summarize(results)
			cmd.Printf("\n%d backends, %d available, %d connected\n",
				summary.Total, summary.Available, summary.Connected)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSetup, "setup", false, "show setup instructions for unavailable backends")
	return cmd
}
