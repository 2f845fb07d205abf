package main

import (
	"context"

	"github.com/trezcool/alama/core/user"
)

// addUser validates and creates a user.User of any role.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	logger.Printf("created %s %q (%s)", usr.Role, usr.Username, usr.ID)
	return nil
}
