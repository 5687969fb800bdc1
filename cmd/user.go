package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/auth"
)

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(newUserAddCmd(g))
	return cmd
}

func newUserAddCmd(g *globalFlags) *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a local user (username/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			if err := e.cfg.RequireSessionKeys(); err != nil {
				return err
			}

			ctx := cmd.Context()
			d, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			store := auth.NewStore(auth.NewDBUsers(d), e.cfg.CookieHashKey, e.cfg.CookieBlockKey)
			if err := store.CreateUser(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
