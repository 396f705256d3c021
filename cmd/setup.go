package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/config"
	"github.com/user/zte-adk/pkg/logger"
)

var providerChoices = map[string]string{
	"1": "gemini", "gemini": "gemini",
	"2": "openai", "openai": "openai",
	"3": "anthropic", "anthropic": "anthropic",
	"4": "", "none": "",
}

// setupWizard walks through provider, model order, backend check and store.
// It edits cfg in place; saving is left to the caller.
type setupWizard struct {
	in         *bufio.Scanner
	out        io.Writer
	newFactory func(hclog.Logger) adk.Factory
	log        hclog.Logger
}

func (w *setupWizard) ask(label string) string {
	fmt.Fprintf(w.out, "%s > ", label)
	if !w.in.Scan() {
		return ""
	}
	return strings.TrimSpace(w.in.Text())
}

func (w *setupWizard) run(ctx context.Context, cfg *config.Config) error {
	fmt.Fprintln(w.out, "Welcome to ZTE-ADK Setup Wizard")
	fmt.Fprintln(w.out, "-------------------------------")

	fmt.Fprintln(w.out, "Step 1: Choose the generative backend")
	fmt.Fprintln(w.out, "1. Gemini (Google)")
	fmt.Fprintln(w.out, "2. OpenAI")
	fmt.Fprintln(w.out, "3. Anthropic")
	fmt.Fprintln(w.out, "4. None (deterministic analysis only)")
	provider, ok := providerChoices[strings.ToLower(w.ask("Enter number or name"))]
	if !ok {
		return fmt.Errorf("invalid provider choice")
	}

	if provider == "" {
		cfg.Synthesis.Disabled = true
		fmt.Fprintln(w.out, "\nAI features disabled; explanations, summaries and proposals use built-in analysis.")
	} else if err := w.setupBackend(ctx, cfg, provider); err != nil {
		return err
	}

	return w.setupStore(cfg)
}

func (w *setupWizard) setupBackend(ctx context.Context, cfg *config.Config, provider string) error {
	fmt.Fprintf(w.out, "\nStep 2: Enter API Key for %s\n", provider)
	apiKey := w.ask("")
	if apiKey == "" {
		apiKey = cfg.GetAPIKey(provider)
	}
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	factory := w.newFactory(w.log)
	fmt.Fprintln(w.out, "\nStep 3: Fetching available models...")
	var models []string
	if p, err := factory(ctx, provider, apiKey, ""); err != nil {
		fmt.Fprintf(w.out, "Warning: could not initialize provider: %v\n", err)
	} else {
		models, err = p.ListModels(ctx)
		if closer, ok := p.(interface{ Close() }); ok {
			closer.Close()
		}
		if err != nil {
			fmt.Fprintf(w.out, "Warning: could not fetch models: %v\n", err)
		}
	}

	var order []string
	if len(models) > 0 {
		for i, m := range models {
			fmt.Fprintf(w.out, "%d. %s\n", i+1, m)
		}
		fmt.Fprintln(w.out, "List the models to try, in order, as numbers separated by commas (e.g. 2,1).")
		var err error
		order, err = parseModelOrder(w.ask("Model order"), models)
		if err != nil {
			fmt.Fprintf(w.out, "%v. Using %s.\n", err, models[0])
			order = models[:1]
		}
	} else {
		fmt.Fprintln(w.out, "Enter model names in preference order, separated by commas:")
		order = splitList(w.ask(""))
		if len(order) == 0 {
			return fmt.Errorf("no model given")
		}
	}

	fmt.Fprintln(w.out, "\nStep 4: Checking models in order...")
	chosen, err := adk.SelectBackend(ctx, factory, provider, apiKey, order, w.log)
	if err != nil {
		fmt.Fprintf(w.out, "No model answered the check: %v\n", err)
		if !strings.HasPrefix(strings.ToLower(w.ask("Save anyway? [y/N]")), "y") {
			return fmt.Errorf("setup aborted")
		}
	} else {
		fmt.Fprintf(w.out, "Model %s is ready.\n", chosen.Model())
		if closer, ok := chosen.(interface{ Close() }); ok {
			closer.Close()
		}
	}

	cfg.SelectedProvider = provider
	cfg.SelectedModel = order[0]
	cfg.ModelCandidates = order[1:]
	cfg.Synthesis.Disabled = false
	cfg.SetAPIKey(provider, apiKey)
	return nil
}

func (w *setupWizard) setupStore(cfg *config.Config) error {
	fmt.Fprintf(w.out, "\nStep 5: Finding store (memory, file, postgres) [%s]\n", cfg.Store.Driver)
	driver := strings.ToLower(w.ask("Store"))
	switch driver {
	case "":
	case "memory":
		cfg.Store.Driver = driver
	case "file":
		cfg.Store.Driver = driver
		if path := w.ask(fmt.Sprintf("Snapshot path [%s]", cfg.Store.Path)); path != "" {
			cfg.Store.Path = path
		}
	case "postgres":
		cfg.Store.Driver = driver
		dsn := w.ask("PostgreSQL DSN")
		if dsn == "" && cfg.Store.DSN == "" {
			return fmt.Errorf("postgres store requires a DSN")
		}
		if dsn != "" {
			cfg.Store.DSN = dsn
		}
	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}
	return nil
}

// parseModelOrder turns "2, 1" into the matching models, keeping order and dropping repeats
func parseModelOrder(input string, models []string) ([]string, error) {
	var out []string
	seen := map[int]bool{}
	for _, field := range splitList(input) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(models) {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, models[n-1])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no model selected")
	}
	return out, nil
}

func splitList(input string) []string {
	var out []string
	for _, field := range strings.Split(input, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		logger.DebugEnabled = DebugMode
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		w := &setupWizard{
			in:         bufio.NewScanner(os.Stdin),
			out:        os.Stdout,
			newFactory: adk.NewFactory,
			log:        logger.NewLogger(cfg, "setup"),
		}
		if err := w.run(context.Background(), cfg); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if err := saveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-------------------------------")
		fmt.Println("Setup Complete!")
		if cfg.Synthesis.Disabled {
			fmt.Println("AI:       disabled")
		} else {
			fmt.Printf("Provider: %s\n", cfg.SelectedProvider)
			fmt.Printf("Models:   %s\n", strings.Join(cfg.Candidates(), ", "))
		}
		fmt.Printf("Store:    %s\n", cfg.Store.Driver)
		fmt.Println("You can now run 'zte-adk scan' or 'zte-adk interactive'")
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
