package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/output"
)

var userAvatar string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "List or add board members",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List board members",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a board member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userAvatar, "avatar", "", "Avatar image URL")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func userListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users yet. Add one with 'board user add <name>'.")
		return nil
	}

	me, _ := currentUserID(ctx, svc)
	table := ui.Table([]string{"ID", "Name", "Avatar", ""})
	for _, u := range users {
		marker := ""
		if u.ID == me {
			marker = output.Green("current")
		}
		_ = table.Append([]string{u.ID, u.Name, u.AvatarURL, marker})
	}
	_ = table.Render()
	return nil
}

func userAddRun(name string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add user %s", name)
		return nil
	}

	u, err := svc.CreateUser(context.Background(), name, userAvatar)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	ui.Success("Added user %s (%s)", u.Name, output.Cyan(u.ID))
	if viper.GetString("current_user") == "" {
		ui.Info("Act as this user with --user %q or BOARD_CURRENT_USER", u.Name)
	}
	return nil
}
