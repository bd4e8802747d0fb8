package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/htmldom"
	"github.com/v0xg/pickmode/internal/picker"
	"github.com/v0xg/pickmode/internal/selector"
	"github.com/v0xg/pickmode/internal/style"
)

func newInspectCmd() *cobra.Command {
	var (
		selects []string
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "inspect <file.html>",
		Short: "Select elements of a local HTML file and print their snapshots",
		Long: `inspect parses an HTML file without a browser, selects every --select
selector in order (as clicks would) and prints the resulting snapshots as JSON.
Geometry is zero and computed styles fall back to inline styles.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			pc := cfg.PickerConfig()
			pc.PersistSelection = false
			if mode != "" {
				m, err := picker.ParseMode(mode)
				if err != nil {
					return err
				}
				pc.EnableMultiSelect = m == picker.ModeMultiple
			}
			return inspect(f, os.Stdout, pc, selects)
		},
	}
	cmd.Flags().StringArrayVarP(&selects, "select", "s", nil, "CSS selector to select (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "", "Selection mode: single, multiple")
	return cmd
}

func inspect(r io.Reader, w io.Writer, cfg picker.Config, selects []string) error {
	doc, err := htmldom.Parse(r)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	var firstErr error
	eng := picker.New(doc, cfg, picker.WithHooks(picker.Hooks{
		OnError: func(err *picker.Error) {
			if firstErr == nil {
				firstErr = err
			}
		},
	}))
	defer eng.Destroy()

	for _, sel := range selects {
		el, err := selector.Resolve(doc, sel)
		if err != nil {
			return err
		}
		if el == nil {
			return fmt.Errorf("no element matches %q", sel)
		}
		eng.Select(el)
	}
	if firstErr != nil {
		return firstErr
	}

	snaps := []*style.Snapshot{}
	for _, el := range eng.SelectedElements() {
		s, err := eng.ElementInfo(el)
		if err != nil {
			return err
		}
		snaps = append(snaps, s)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snaps)
}
