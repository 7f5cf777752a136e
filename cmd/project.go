package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
)

var (
	projectName     string
	projectURL      string
	projectDesc     string
	projectCategory string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Show or change project settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show project settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun()
	},
}

var projectSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change project settings",
	Long: `Change one or more project settings. Every field is validated together;
on error nothing is saved and each invalid field is reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectSetRun(cmd.Flags().Changed)
	},
}

func init() {
	projectSetCmd.Flags().StringVar(&projectName, "name", "", "Project name")
	projectSetCmd.Flags().StringVar(&projectURL, "url", "", "Project URL (empty to clear)")
	projectSetCmd.Flags().StringVar(&projectDesc, "desc", "", "Project description")
	projectSetCmd.Flags().StringVar(&projectCategory, "category", "", "Category: software, marketing, business")

	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectSetCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectShowRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	p, err := svc.GetProject(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Name))
	fmt.Fprintf(ui.Out, "  Category:   %s\n", p.Category)
	if p.URL != "" {
		fmt.Fprintf(ui.Out, "  URL:        %s\n", p.URL)
	}
	if text := models.PlainText(p.Description); text != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", text)
	}
	return nil
}

// projectSetRun applies the flags for which changed reports true.
func projectSetRun(changed func(name string) bool) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	var patch board.ProjectPatch
	if changed("name") {
		patch.Name = &projectName
	}
	if changed("url") {
		patch.URL = &projectURL
	}
	if changed("desc") {
		patch.Description = &projectDesc
	}
	if changed("category") {
		c, err := models.ParseProjectCategory(projectCategory)
		if err != nil {
			return err
		}
		patch.Category = &c
	}
	if patch == (board.ProjectPatch{}) {
		return fmt.Errorf("no settings specified (use --name, --url, --desc or --category)")
	}

	if dryRun {
		ui.DryRunMsg("Would update project settings")
		return nil
	}

	p, err := svc.UpdateProject(context.Background(), patch)
	var verrs board.ValidationErrors
	if errors.As(err, &verrs) {
		for _, ve := range verrs {
			ui.Error("%s: %s", ve.Field, ve.Message)
		}
		return fmt.Errorf("project settings not saved: %d invalid fields", len(verrs))
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	ui.Success("Saved project settings: %s", p.Name)
	return nil
}
