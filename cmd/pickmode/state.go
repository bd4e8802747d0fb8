package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/persist"
)

func newStateCmd() *cobra.Command {
	var (
		origin string
		dbPath string
		clear  bool
	)
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show or clear selections stored in the SQLite backend",
		Long: `state reads the SQLite selection store. Without --origin it lists the
origins that have stored state; with --origin it prints that origin's state,
or removes it with --clear.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Storage.Path
			}
			if dbPath == "" {
				dbPath = "pickmode.db"
			}
			return showState(os.Stdout, dbPath, origin, clear)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Page origin, e.g. https://example.com")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default: storage.path)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the stored selection for --origin")
	return cmd
}

func showState(w io.Writer, dbPath, origin string, clear bool) error {
	sq, err := persist.OpenSQLite(dbPath, origin)
	if err != nil {
		return err
	}
	defer sq.Close()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if origin == "" {
		if clear {
			return fmt.Errorf("--clear needs --origin")
		}
		origins, err := sq.Namespaces()
		if err != nil {
			return err
		}
		if origins == nil {
			origins = []string{}
		}
		return enc.Encode(origins)
	}

	store := persist.New(sq)
	if clear {
		if err := store.Clear(); err != nil {
			return err
		}
	}
	return enc.Encode(store.Info())
}
