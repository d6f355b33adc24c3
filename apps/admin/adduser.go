package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youknow/checklist/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		nu      user.NewUser
		isAdmin bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword("Enter password")
			if err != nil {
				return err
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd
			if isAdmin {
				nu.Roles = []string{user.RoleAdminOwner}
			}
			usr, err := cli.addUser(cmd.Context(), nu)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %q created (id: %s)\n", usr.Name, usr.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&nu.Name, "name", "", "full name (required)")
	flags.StringVarP(&nu.Username, "username", "u", "", "username")
	flags.StringVarP(&nu.Email, "email", "e", "", "email")
	flags.StringSliceVarP(&nu.Roles, "role", "r", nil, "roles, e.g. employee: or leader:")
	flags.BoolVar(&isAdmin, "admin", false, "grant the admin owner role, overrides --role")
	return cmd
}

func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Create(ctx, nu)
}
