package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/driver"
	"github.com/v0xg/pickmode/internal/picker"
)

func newPickCmd() *cobra.Command {
	var (
		script string
		mode   string
	)
	cmd := &cobra.Command{
		Use:   "pick <url>",
		Short: "Pick elements on a page and print notifications as JSON lines",
		Long: `pick opens the page with pick mode on. Hover to highlight, click to select,
Tab to switch between single and multiple selection, Escape to finish.

With --script the steps run through an animated pointer instead of waiting
for a human. Steps are separated by ';' or newlines:
  hover:<selector>  click:<selector>  key:<Escape|Tab|...>  wait:<ms>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var steps []driver.Step
			if script != "" {
				if steps, err = driver.ParseSteps(script); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n := newNotifier(os.Stdout)
			ps, err := openPage(ctx, cfg, args[0], n.hooks())
			if err != nil {
				return err
			}
			defer ps.Close()

			eng := ps.engine
			if mode != "" {
				m, err := picker.ParseMode(mode)
				if err != nil {
					return err
				}
				eng.SetSelectionMode(m)
			}
			eng.Enable()

			if len(steps) > 0 {
				return runScript(ctx, ps, steps)
			}

			fmt.Fprintln(os.Stderr, "Pick mode on. Press Escape in the page or Ctrl+C here to finish.")
			waitDisabled(ctx, eng)
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Steps to run instead of waiting for a human")
	cmd.Flags().StringVar(&mode, "mode", "", "Initial selection mode: single, multiple")
	return cmd
}

func runScript(ctx context.Context, ps *pageSession, steps []driver.Step) error {
	b := ps.cfg.Browser
	d := driver.New(ps.browser.Page(), b.Width, b.Height, driver.Options{})

	step("Running %d steps... ", len(steps))
	err := d.Run(ctx, steps)
	stepDone(err)
	if err != nil {
		return fmt.Errorf("script failed: %w", err)
	}

	// Let in-flight events and mutations land before reporting.
	select {
	case <-ctx.Done():
	case <-time.After(200 * time.Millisecond):
	}
	ps.engine.FlushMutations()
	logVerbose("  %d elements selected", len(ps.engine.SelectedElements()))
	return nil
}

// waitDisabled blocks until pick mode is turned off or ctx is done.
func waitDisabled(ctx context.Context, eng *picker.Engine) {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !eng.Enabled() {
				return
			}
		}
	}
}
