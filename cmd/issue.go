package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
)

var (
	issueTitle     string
	issueDesc      string
	issuePriority  string
	issueType      string
	issueAddType   string
	issueStatus    string
	issueReporter  string
	issueAssignees []string
	issueUnassign  bool
	issueEstimate  string
	issueSpent     string
	issueRemaining string
	issueYes       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage board issues",
	Long:  "Create, update, move, track time on and delete issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new issue at the top of its column",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues in board order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details, time tracking and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Long:  "Update one or more fields. Either every change is applied or none is.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <issue-id> <column>",
	Short: "Move an issue to another column",
	Long: `Move an issue to a column: backlog, selected, inprogress or done
(column names such as "In Progress" work too). The issue lands at the
top of the target column. Moving to its current column does nothing.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(args[0], args[1])
	},
}

var issueEstimateCmd = &cobra.Command{
	Use:   "estimate <issue-id> <hours|none>",
	Short: "Set or clear the original estimate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueEstimateRun(args[0], args[1])
	},
}

var issueLogCmd = &cobra.Command{
	Use:   "log <issue-id>",
	Short: "Log time spent and set time remaining",
	Long:  "--spent is added to the hours already logged; --remaining replaces the remaining estimate.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueLogRun(args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Permanently delete an issue and its comments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issueAddType, "type", "task", "Type: task, bug, story")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", "", "Column: backlog, selected, inprogress, done (default backlog)")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "", "Priority: highest, high, medium, low, lowest (default medium)")
	issueAddCmd.Flags().StringVar(&issueReporter, "reporter", "", "Reporter ID or name (default current user)")
	issueAddCmd.Flags().StringSliceVar(&issueAssignees, "assignee", nil, "Assignee ID or name (repeatable)")
	issueAddCmd.Flags().StringVar(&issueEstimate, "estimate", "", "Original estimate in hours")
	_ = issueAddCmd.MarkFlagRequired("title")

	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by column")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueType, "type", "", "New type")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New column")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")
	issueUpdateCmd.Flags().StringVar(&issueReporter, "reporter", "", "New reporter ID or name")
	issueUpdateCmd.Flags().StringSliceVar(&issueAssignees, "assignee", nil, "Replace assignees (repeatable)")
	issueUpdateCmd.Flags().BoolVar(&issueUnassign, "unassign", false, "Remove every assignee")
	issueUpdateCmd.Flags().StringVar(&issueEstimate, "estimate", "", "Original estimate in hours, or \"none\" to clear")

	issueLogCmd.Flags().StringVar(&issueSpent, "spent", "", "Hours spent in this session")
	issueLogCmd.Flags().StringVar(&issueRemaining, "remaining", "", "Hours remaining (default unchanged)")

	issueDeleteCmd.Flags().BoolVarP(&issueYes, "yes", "y", false, "Delete without asking")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueMoveCmd)
	issueCmd.AddCommand(issueEstimateCmd)
	issueCmd.AddCommand(issueLogCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	actor, err := currentUserID(ctx, svc)
	if err != nil {
		return err
	}

	d := board.Draft{Title: issueTitle, Description: issueDesc}
	if d.Type, err = models.ParseIssueType(issueAddType); err != nil {
		return err
	}
	if issueStatus != "" {
		if d.Status, err = models.ParseIssueStatus(issueStatus); err != nil {
			return err
		}
	}
	if issuePriority != "" {
		if d.Priority, err = models.ParseIssuePriority(issuePriority); err != nil {
			return err
		}
	}
	if issueReporter != "" {
		u, err := svc.FindUser(ctx, issueReporter)
		if err != nil {
			return err
		}
		d.ReporterID = u.ID
	}
	if d.AssigneeIDs, err = svc.FindUsers(ctx, issueAssignees); err != nil {
		return err
	}
	if d.Estimate, err = board.ParseHours("estimate", issueEstimate); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add issue: %s [%s]", issueTitle, d.Type)
		return nil
	}

	issue, err := svc.CreateIssue(ctx, actor, d)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created issue %s in %s: %s", output.Cyan(shortID(issue.ID)), issue.Status.DisplayName(), issue.Title)
	return nil
}

func issueListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var only models.IssueStatus
	if issueStatus != "" {
		if only, err = models.ParseIssueStatus(issueStatus); err != nil {
			return err
		}
	}

	issues, err := svc.ListIssues(ctx)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Status", "Title", "Type", "Priority", "Time"})
	rows := 0
	for _, status := range models.IssueStatuses {
		if only != "" && status != only {
			continue
		}
		for _, issue := range issues {
			if issue.Status != status {
				continue
			}
			_ = table.Append([]string{
				shortID(issue.ID),
				output.StatusColor(issue.Status),
				issue.Title,
				string(issue.Type),
				output.PriorityColor(issue.Priority),
				board.ProgressOf(issue).Summary(),
			})
			rows++
		}
	}

	if rows == 0 {
		ui.Info("No issues found.")
		return nil
	}
	_ = table.Render()
	return nil
}

func issueShowRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}
	names := userNames(ctx, svc)

	assignees := make([]string, len(issue.AssigneeIDs))
	for i, uid := range issue.AssigneeIDs {
		assignees[i] = names[uid]
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(issue.Status))
	fmt.Fprintf(ui.Out, "  Type:       %s\n", issue.Type)
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(issue.Priority))
	fmt.Fprintf(ui.Out, "  Reporter:   %s\n", names[issue.ReporterID])
	if len(assignees) > 0 {
		fmt.Fprintf(ui.Out, "  Assignees:  %s\n", strings.Join(assignees, ", "))
	}
	if text := models.PlainText(issue.Description); text != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", text)
	}

	p := board.ProgressOf(issue)
	if p.HasEstimate {
		fmt.Fprintf(ui.Out, "  Estimate:   %gh\n", p.Estimate)
		fmt.Fprintf(ui.Out, "  Progress:   %s\n", output.ProgressColor(p.Percent))
	}
	fmt.Fprintf(ui.Out, "  Time:       %s\n", p.Summary())
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)

	if len(issue.Comments) > 0 {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "Comments (%d)\n", len(issue.Comments))
		for _, c := range issue.Comments {
			fmt.Fprintf(ui.Out, "  %s  %s  %s\n", output.Cyan(shortID(c.ID)), names[c.AuthorID], c.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(ui.Out, "    %s\n", c.Body)
		}
	}
	return nil
}

func issueUpdateRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}

	var p board.Patch
	if issueTitle != "" {
		p.Title = &issueTitle
	}
	if issueDesc != "" {
		p.Description = &issueDesc
	}
	if issueType != "" {
		t, err := models.ParseIssueType(issueType)
		if err != nil {
			return err
		}
		p.Type = &t
	}
	if issueStatus != "" {
		st, err := models.ParseIssueStatus(issueStatus)
		if err != nil {
			return err
		}
		p.Status = &st
	}
	if issuePriority != "" {
		pr, err := models.ParseIssuePriority(issuePriority)
		if err != nil {
			return err
		}
		p.Priority = &pr
	}
	if issueReporter != "" {
		u, err := svc.FindUser(ctx, issueReporter)
		if err != nil {
			return err
		}
		p.ReporterID = &u.ID
	}
	switch {
	case issueUnassign:
		none := []string{}
		p.AssigneeIDs = &none
	case len(issueAssignees) > 0:
		ids, err := svc.FindUsers(ctx, issueAssignees)
		if err != nil {
			return err
		}
		p.AssigneeIDs = &ids
	}
	if issueEstimate != "" {
		if strings.EqualFold(issueEstimate, "none") {
			p.ClearEstimate = true
		} else if p.Estimate, err = board.ParseHours("estimate", issueEstimate); err != nil {
			return err
		}
	}

	if p.IsEmpty() {
		return fmt.Errorf("no updates specified (use --title, --desc, --type, --status, --priority, --reporter, --assignee, --unassign or --estimate)")
	}

	if dryRun {
		ui.DryRunMsg("Would update issue %s", shortID(issue.ID))
		return nil
	}

	if _, err := svc.UpdateIssue(ctx, issue.ID, p); err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	ui.Success("Updated issue %s", output.Cyan(shortID(issue.ID)))
	return nil
}

func issueMoveRun(id, column string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, ok := board.ColumnForKey(column)
	if !ok {
		return fmt.Errorf("unknown column %q (use backlog, selected, inprogress or done)", column)
	}
	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would move issue %s to %s", shortID(issue.ID), status.DisplayName())
		return nil
	}

	_, moved, err := svc.Drop(ctx, board.DropEvent{IssueID: issue.ID, Column: column})
	if err != nil {
		return fmt.Errorf("move issue: %w", err)
	}
	if !moved {
		ui.Info("Issue %s is already in %s", output.Cyan(shortID(issue.ID)), status.DisplayName())
		return nil
	}
	ui.Success("Moved issue %s to %s", output.Cyan(shortID(issue.ID)), output.StatusColor(status))
	return nil
}

func issueEstimateRun(id, hours string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var est *float64
	if !strings.EqualFold(hours, "none") {
		if est, err = board.ParseHours("estimate", hours); err != nil {
			return err
		}
	}
	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would set estimate of %s to %s", shortID(issue.ID), hours)
		return nil
	}

	updated, err := svc.SetEstimate(ctx, issue.ID, est)
	if err != nil {
		return fmt.Errorf("set estimate: %w", err)
	}
	ui.Success("Issue %s: %s", output.Cyan(shortID(updated.ID)), board.ProgressOf(updated).Summary())
	return nil
}

func issueLogRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	spent, err := board.ParseHours("timeSpent", issueSpent)
	if err != nil {
		return err
	}
	remaining, err := board.ParseHours("timeRemaining", issueRemaining)
	if err != nil {
		return err
	}
	if spent == nil && remaining == nil {
		return fmt.Errorf("nothing to log (use --spent and/or --remaining)")
	}
	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}

	var sp float64
	if spent != nil {
		sp = *spent
	}
	rem := issue.TimeRemaining
	if remaining != nil {
		rem = *remaining
	}

	if dryRun {
		ui.DryRunMsg("Would log %gh on %s with %gh remaining", sp, shortID(issue.ID), rem)
		return nil
	}

	updated, err := svc.LogTime(ctx, issue.ID, sp, rem)
	if err != nil {
		return fmt.Errorf("log time: %w", err)
	}
	ui.Success("Issue %s: %s", output.Cyan(shortID(updated.ID)), board.ProgressOf(updated).Summary())
	return nil
}

func issueDeleteRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.FindIssue(ctx, id)
	if err != nil {
		return err
	}
	pending, err := svc.PrepareDeleteIssue(ctx, issue.ID)
	if err != nil {
		return err
	}

	if dryRun {
		pending.Cancel()
		ui.DryRunMsg("Would delete issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}
	if !issueYes && !confirm(pending.Prompt()) {
		pending.Cancel()
		ui.Info("Cancelled")
		return nil
	}

	if err := pending.Confirm(ctx); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

// userNames maps user IDs to display names for output.
func userNames(ctx context.Context, svc *board.Service) map[string]string {
	names := make(map[string]string)
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}
