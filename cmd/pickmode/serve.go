package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v0xg/pickmode/internal/mcpserver"
	"github.com/v0xg/pickmode/internal/picker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <url>",
		Short: "Serve picker tools over MCP on stdio",
		Long: `serve opens the page and exposes the picker as MCP tools on stdin/stdout,
so an agent can enable pick mode, select elements and read their styles.
Progress and logs go to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n := newNotifier(os.Stderr)
			ps, err := openPage(ctx, cfg, args[0], picker.Hooks{})
			if err != nil {
				return err
			}
			defer ps.Close()

			srv := mcpserver.New(ps.engine, ps.doc, nil)
			hooks := picker.Hooks{}
			if verbose {
				hooks = n.hooks()
			}
			ps.engine.SetHooks(srv.Hooks(hooks))

			return srv.Serve(ctx, version)
		},
	}
}
