package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/output"
)

var commentYes bool

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add, edit or delete issue comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <issue-id> <body>",
	Short: "Comment on an issue as the current user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentAddRun(args[0], args[1])
	},
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <comment-id> <body>",
	Short: "Replace a comment's text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentEditRun(args[0], args[1])
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete <comment-id>",
	Aliases: []string{"rm"},
	Short:   "Permanently delete a comment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentDeleteRun(args[0])
	},
}

func init() {
	commentDeleteCmd.Flags().BoolVarP(&commentYes, "yes", "y", false, "Delete without asking")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentEditCmd)
	commentCmd.AddCommand(commentDeleteCmd)
	rootCmd.AddCommand(commentCmd)
}

func commentAddRun(issueRef, body string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	author, err := requireCurrentUser(ctx, svc)
	if err != nil {
		return err
	}
	issue, err := svc.FindIssue(ctx, issueRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would comment on %s", shortID(issue.ID))
		return nil
	}

	c, err := svc.AddComment(ctx, issue.ID, author, body)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	ui.Success("Added comment %s to %s", output.Cyan(c.ID), shortID(issue.ID))
	return nil
}

func commentEditRun(id, body string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would edit comment %s", id)
		return nil
	}

	c, err := svc.EditComment(ctx, id, body)
	if err != nil {
		return fmt.Errorf("edit comment: %w", err)
	}
	ui.Success("Updated comment %s", output.Cyan(c.ID))
	return nil
}

func commentDeleteRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	pending, err := svc.PrepareDeleteComment(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		pending.Cancel()
		ui.DryRunMsg("Would delete comment %s", id)
		return nil
	}
	if !commentYes && !confirm(pending.Prompt()) {
		pending.Cancel()
		ui.Info("Cancelled")
		return nil
	}

	if err := pending.Confirm(ctx); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	ui.Success("Deleted comment %s", id)
	return nil
}
