package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/seed"
)

var (
	seedReset bool
	seedFile  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo data into the board",
	Long: `Load the demo project, its members (Gaben, Yoda, Pickle Rick) and a set
of issues across every column. The board must be empty unless --reset is
given, which deletes everything first. --file loads a YAML fixture of the
same shape instead of the built-in demo.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return seedRun()
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "Delete all board data before seeding")
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML fixture to load instead of the demo")
	rootCmd.AddCommand(seedCmd)
}

func loadFixture() (*seed.Fixture, error) {
	if seedFile != "" {
		return seed.LoadFile(seedFile)
	}
	return seed.Demo()
}

func seedRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	f, err := loadFixture()
	if err != nil {
		return err
	}

	empty, err := seed.IsEmpty(ctx, svc)
	if err != nil {
		return err
	}
	if !empty && !seedReset {
		return fmt.Errorf("board already has data (use --reset to replace it)")
	}

	if dryRun {
		if !empty {
			ui.DryRunMsg("Would delete all board data")
		}
		ui.DryRunMsg("Would seed %d users and %d issues", len(f.Users), len(f.Issues))
		return nil
	}

	if !empty {
		if err := s.Reset(ctx); err != nil {
			return fmt.Errorf("reset board: %w", err)
		}
		ui.Warning("Deleted all board data")
	}

	res, err := seed.Apply(ctx, svc, f)
	if err != nil {
		return err
	}
	ui.Success("Seeded %d users and %d issues", len(res.Users), len(res.Issues))
	return nil
}

// seedIfEmpty loads the demo into an empty board and reports whether it did.
func seedIfEmpty(ctx context.Context, svc *board.Service) (bool, error) {
	empty, err := seed.IsEmpty(ctx, svc)
	if err != nil || !empty {
		return false, err
	}
	f, err := loadFixture()
	if err != nil {
		return false, err
	}
	if _, err := seed.Apply(ctx, svc, f); err != nil {
		return false, err
	}
	return true, nil
}
