package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tern-cli/tern/pkg/llm"
	"github.com/tern-cli/tern/pkg/session"
)

// turnCanceller routes a process interrupt to whatever request is in
// flight. One canceller is registered with the interrupt handler for the
// whole REPL; each turn swaps its cancel func in and out.
type turnCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (t *turnCanceller) set(fn context.CancelFunc) {
	t.mu.Lock()
	t.cancel = fn
	t.mu.Unlock()
}

func (t *turnCanceller) fire() {
	t.mu.Lock()
	fn := t.cancel
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func newChatCmd(app *App) *cobra.Command {
	var modelFlag string
	var fresh bool

	cmd := &cobra.Command{
		Use:   "chat [backend]",
		Short: "Start an interactive chat session",
		Long: "Start an interactive chat session. Without an argument the " +
			"previous session's backend is restored, falling back to " +
			"auto-selection by priority.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var restored *session.Record
			if !fresh {
				rec, err := app.sessions.Load()
				if err != nil {
					cmd.PrintErrf("Warning: could not restore session: %v\n", err)
				}
				restored = rec
			}

			if err := selectChatBackend(ctx, app, cmd, args, restored); err != nil {
				return err
			}

			backend, activeID, _ := app.orch.Active()
			model := resolveModel(app, activeID, modelFlag, restored)
			if model == "" {
				fallback, err := defaultModelFor(ctx, app, activeID)
				if err != nil {
					return err
				}
				model = fallback
			}
			if err := backend.ValidateModelID(model); err != nil {
				return err
			}

			var history []llm.Message
			if restored != nil && restored.Provider == string(activeID) {
				history = restored.Messages
				if len(history) > 0 {
					cmd.Printf("Restored %d messages from the previous session\n", len(history))
				}
			}

			cmd.Printf("Chatting with %s (%s). Ctrl-C cancels a reply, /quit exits.\n",
				activeID.DisplayName(), model)

			canceller := &turnCanceller{}
			app.interrupts.Register(canceller.fire)

			return runREPL(ctx, app, cmd, canceller, model, history)
		},
	}

	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "model to chat with")
	cmd.Flags().BoolVar(&fresh, "new", false, "start a fresh session, ignoring the saved one")
	return cmd
}

// selectChatBackend picks the backend for the session: an explicit
// argument wins, then the restored session's provider, then priority
// auto-selection.
func selectChatBackend(ctx context.Context, app *App, cmd *cobra.Command, args []string, restored *session.Record) error {
	if len(args) == 1 {
		return app.orch.SetActive(ctx, llm.BackendID(args[0]))
	}

	if restored != nil {
		id := llm.BackendID(restored.Provider)
		if id.Valid() && app.cfg.Enabled(id) {
			if err := app.orch.SetActive(ctx, id); err == nil {
				return nil
			}
			cmd.PrintErrf("Previous backend %s is unreachable, auto-selecting\n", id.DisplayName())
		}
	}

	id, err := app.orch.AutoSelect(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Auto-selected %s\n", id.DisplayName())
	return nil
}

// defaultModelFor resolves the model to chat with on a freshly selected
// backend: the configured default, else the backend's first listed model.
func defaultModelFor(ctx context.Context, app *App, id llm.BackendID) (string, error) {
	if m := app.cfg.Backend(id).Model; m != "" {
		return m, nil
	}
	backend, err := app.registry.GetOrCreate(id)
	if err != nil {
		return "", err
	}
	models, err := backend.ListModels(ctx)
	if err != nil {
		return "", err
	}
	return models[0].ID, nil
}

func resolveModel(app *App, id llm.BackendID, flag string, restored *session.Record) string {
	if flag != "" {
		return flag
	}
	if restored != nil && restored.Provider == string(id) && restored.Model != "" {
		return restored.Model
	}
	return app.cfg.Backend(id).Model
}

func runREPL(ctx context.Context, app *App, cmd *cobra.Command, canceller *turnCanceller, model string, history []llm.Message) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	for {
		cmd.Print("> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleREPLCommand(ctx, app, cmd, line, &model, &history)
			if err != nil {
				printTagged(cmd, err)
			}
			if done {
				return nil
			}
			continue
		}

		history = append(history, llm.NewUserMessage(line))

		turnCtx, cancel := context.WithCancel(ctx)
		canceller.set(cancel)
		resp, err := app.orch.Chat(turnCtx, llm.ChatRequest{
			Model:    model,
			Messages: history,
		})
		canceller.set(nil)
		cancel()

		if err != nil {
			if llm.IsCancelled(err) {
				cmd.Println("(cancelled)")
				// Drop the unanswered user message so the history
				// stays role-alternating.
				history = history[:len(history)-1]
				continue
			}
			history = history[:len(history)-1]
			printTagged(cmd, err)
			continue
		}

		cmd.Println(resp.Text())
		if resp.Metrics != nil && resp.Metrics.EvalDuration > 0 {
			cmd.Printf("  (%.1fs)\n", resp.Metrics.EvalDuration.Seconds())
		}
		history = append(history, llm.NewAssistantMessage(resp.Text()))

		_, activeID, _ := app.orch.Active()
		if err := app.sessions.Save(session.Record{
			Provider:  string(activeID),
			Model:     model,
			Timestamp: time.Now(),
			Messages:  history,
		}); err != nil {
			cmd.PrintErrf("Warning: could not save session: %v\n", err)
		}
	}
}

// handleREPLCommand processes slash commands. It returns true when the
// REPL should exit.
func handleREPLCommand(ctx context.Context, app *App, cmd *cobra.Command, line string, model *string, history *[]llm.Message) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		*history = nil
		cmd.Println("Started a fresh conversation")
		return false, nil

	case "/use":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /use <backend>")
		}
		id := llm.BackendID(fields[1])
		if err := app.orch.SetActive(ctx, id); err != nil {
			return false, err
		}
		next, err := defaultModelFor(ctx, app, id)
		if err != nil {
			return false, err
		}
		*model = next
		cmd.Printf("Switched to %s (%s)\n", id.DisplayName(), *model)
		return false, nil

	case "/failover":
		id, err := app.orch.Failover(ctx)
		if err != nil {
			return false, err
		}
		next, err := defaultModelFor(ctx, app, id)
		if err != nil {
			return false, err
		}
		*model = next
		cmd.Printf("Failed over to %s (%s)\n", id.DisplayName(), *model)
		return false, nil

	case "/model":
		if len(fields) != 2 {
			cmd.Printf("Current model: %s\n", *model)
			return false, nil
		}
		backend, _, ok := app.orch.Active()
		if !ok {
			return false, fmt.Errorf("no backend is selected")
		}
		if err := backend.ValidateModelID(fields[1]); err != nil {
			return false, err
		}
		*model = fields[1]
		cmd.Printf("Model set to %s\n", *model)
		return false, nil

	case "/status":
		summary := app.orch.StatusSummary(ctx)
		cmd.Printf("%d backends, %d available, %d connected, active: %s\n",
			summary.Total, summary.Available, summary.Connected, summary.Active)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /use, /failover, /model, /status, /new, /quit)", fields[0])
	}
}

func printTagged(cmd *cobra.Command, err error) {
	cmd.PrintErrln("Error:", err)
	if tagged, ok := llm.AsError(err); ok && tagged.Hint != "" {
		cmd.PrintErrln("Hint:", tagged.Hint)
	}
}
