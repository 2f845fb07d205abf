package main

import (
	"context"

	"github.com/trezcool/alama/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = user.CheckPasswordPolicy(pwd, usr.Username, usr.Email); err != nil {
		return err
	}
	_, err = cli.usrSvc.UpdatePassword(ctx, usr, pwd)
	return err
}
