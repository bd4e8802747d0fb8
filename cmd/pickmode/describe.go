package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/ai"
	"github.com/v0xg/pickmode/internal/style"
)

func newDescribeCmd() *cobra.Command {
	var (
		provider string
		model    string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "describe <url> [question]",
		Short: "Ask an AI model about the stored selection",
		Long: `describe restores the stored selection, snapshots every selected element
and asks the configured provider (claude or openai) to describe them.

Example:
  pickmode describe https://example.com "why is the second button misaligned?"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if provider == "" {
				provider = os.Getenv("PICKMODE_DEFAULT_PROVIDER")
			}
			if provider == "" {
				provider = cfg.AI.Provider
			}
			if model == "" {
				model = cfg.AI.Model
			}
			question := ""
			if len(args) > 1 {
				question = args[1]
			}

			describer, err := ai.NewDescriber(provider, model)
			if err != nil {
				return fmt.Errorf("AI provider init failed: %w", err)
			}

			restore := true
			cfg.Picker.PersistSelection = &restore

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n := newNotifier(os.Stderr)
			ps, err := openPage(ctx, cfg, args[0], n.hooks())
			if err != nil {
				return err
			}
			defer ps.Close()
			ps.engine.Disable()

			var snaps []style.Snapshot
			for _, el := range ps.engine.SelectedElements() {
				s, err := ps.engine.ElementInfo(el)
				if err != nil {
					continue
				}
				snaps = append(snaps, *s)
			}
			if len(snaps) == 0 {
				return fmt.Errorf("no stored selection for this page (run pick first)")
			}

			step("Asking %s about %d elements... ", provider, len(snaps))
			d, err := describer.Describe(ctx, snaps, question)
			stepDone(err)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			fmt.Println(formatDescription(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai (default: from env or config)")
	cmd.Flags().StringVar(&model, "model", "", "Specific model override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	return cmd
}

func formatDescription(d *ai.Description) string {
	var b strings.Builder
	b.WriteString(d.Summary)
	b.WriteString("\n")
	for i, e := range d.Elements {
		fmt.Fprintf(&b, "\n  [%d] %s\n      %s\n", i+1, e.Selector, e.Description)
	}
	return b.String()
}
