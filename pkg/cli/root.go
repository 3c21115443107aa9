// Package cli wires the provider runtime into a cobra command tree.
// This is the minimal host around the orchestration runtime: the full
// terminal UI lives elsewhere.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tern-cli/tern/pkg/config"
	"github.com/tern-cli/tern/pkg/interrupt"
	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/orchestrator"
	"github.com/tern-cli/tern/pkg/registry"
	"github.com/tern-cli/tern/pkg/session"
)

// App holds the wired runtime shared by all commands. Everything is
// constructed once by the root command and passed down explicitly.
type App struct {
	cfg        *config.Config
	registry   *registry.Registry
	orch       *orchestrator.Orchestrator
	interrupts *interrupt.Handler
	sessions   *session.Store
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	var configPath string

	root := &cobra.Command{
		Use:           "tern",
		Short:         "Chat with interchangeable local and cloud inference backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Missing .env is fine.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.registry = registry.New(cfg)
			app.orch = orchestrator.New(app.registry, cfg)
			app.sessions = session.NewStore(cfg.SessionPath)
			app.interrupts = interrupt.New()
			app.interrupts.Start()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.interrupts.Stop()
			_ = app.registry.CloseAll()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the settings file")

	root.AddCommand(
		newBackendsCmd(app),
		newUseCmd(app),
		newModelsCmd(app),
		newPullCmd(app),
		newChatCmd(app),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if tagged, ok := llm.AsError(err); ok && tagged.Hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", tagged.Hint)
		}
		return 1
	}
	return 0
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tern/settings.yml"
	}
	return filepath.Join(home, ".tern", "settings.yml")
}
