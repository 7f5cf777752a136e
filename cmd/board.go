package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/client"
	"github.com/joescharf/board/internal/output"
)

var (
	boardSearch string
	boardUsers  []string
	boardMine   bool
	boardRecent bool
	boardRemote bool
)

var boardCmd = &cobra.Command{
	Use:     "view",
	Aliases: []string{"board"},
	Short:   "Show the board grouped by column",
	Long: `Show every visible issue grouped into Backlog, Selected for Development,
In Progress and Done. Filters combine: --search matches title or
description, --assignee (repeatable) matches any of the given users,
--mine keeps issues you reported or are assigned to, --recent keeps recently updated ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun()
	},
}

func init() {
	boardCmd.Flags().StringVarP(&boardSearch, "search", "s", "", "Match title or description text")
	boardCmd.Flags().StringSliceVarP(&boardUsers, "assignee", "a", nil, "Only issues assigned to these users (ID or name)")
	boardCmd.Flags().BoolVar(&boardMine, "mine", false, "Only issues reported by or assigned to the current user")
	boardCmd.Flags().BoolVar(&boardRecent, "recent", false, "Only recently updated issues")
	boardCmd.Flags().BoolVar(&boardRemote, "remote", false, "Read the board from the server at server.url")
	rootCmd.AddCommand(boardCmd)
}

func boardRun() error {
	ctx := context.Background()
	if boardRemote {
		return boardRemoteRun(ctx)
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	crit := board.Criteria{
		SearchText:      boardSearch,
		OnlyMine:        boardMine,
		RecentlyUpdated: boardRecent,
	}
	if boardMine {
		if crit.CurrentUserID, err = requireCurrentUser(ctx, svc); err != nil {
			return err
		}
	}
	ids, err := svc.FindUsers(ctx, boardUsers)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.Contains(crit.UserIDs, id) {
			crit = crit.ToggleUser(id)
		}
	}

	view, err := svc.Board(ctx, crit)
	if err != nil {
		return err
	}
	if boardRecent {
		ui.Info("Showing issues updated in the last %s", svc.RecentWindow())
	}
	renderBoard(view)
	return nil
}

func boardRemoteRun(ctx context.Context) error {
	c := client.New(viper.GetString("server.url"), viper.GetString("current_user"), 0)

	crit := board.Criteria{
		SearchText:      boardSearch,
		OnlyMine:        boardMine,
		RecentlyUpdated: boardRecent,
	}
	if len(boardUsers) > 0 {
		users, err := c.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, ref := range boardUsers {
			found := ""
			for _, u := range users {
				if u.ID == ref || strings.EqualFold(u.Name, ref) {
					found = u.ID
					break
				}
			}
			if found == "" {
				return fmt.Errorf("user %s: %w", ref, board.ErrNotFound)
			}
			if !slices.Contains(crit.UserIDs, found) {
				crit.UserIDs = append(crit.UserIDs, found)
			}
		}
	}

	ui.VerboseLog("GET %s/api/board", viper.GetString("server.url"))
	view, err := c.Board(ctx, crit)
	if err != nil {
		return err
	}
	renderBoard(view)
	return nil
}

// renderBoard prints one table per column, in workflow order.
func renderBoard(view *board.View) {
	if view.Total == 0 {
		if view.Criteria.IsEmpty() {
			ui.Info("The board is empty. Create an issue with 'board issue add' or load demo data with 'board seed'.")
		} else {
			ui.Info("No issues match the current filters.")
		}
		return
	}

	for i, col := range view.Columns {
		if i > 0 {
			fmt.Fprintln(ui.Out)
		}
		fmt.Fprintf(ui.Out, "%s (%d)\n", output.StatusColor(col.Status), col.Count)
		if col.Count == 0 {
			continue
		}
		table := ui.Table([]string{"ID", "Title", "Type", "Priority", "Assignees"})
		for _, card := range col.Issues {
			names := make([]string, len(card.Assignees))
			for n, a := range card.Assignees {
				names[n] = a.Name
			}
			_ = table.Append([]string{
				shortID(card.ID),
				card.Title,
				string(card.Type),
				output.PriorityColor(card.Priority),
				strings.Join(names, ", "),
			})
		}
		_ = table.Render()
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
