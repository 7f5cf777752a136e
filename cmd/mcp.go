package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client read and change the board with tools.
Configure it with:

  {
    "mcpServers": {
      "board": { "command": "board", "args": ["mcp", "--user", "Gaben"] }
    }
  }

Available tools: board_view, get_issue, create_issue, update_issue,
move_issue, delete_issue, add_comment, log_time, list_users`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	return mcp.NewServer(svc, viper.GetString("current_user")).ServeStdio(ctx)
}
