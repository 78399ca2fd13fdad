package main

import (
	"context"

	"github.com/trezcool/academia/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	ident, err := cli.identityRepo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = ident.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.identityRepo.UpdateIdentity(ctx, ident)
	return err
}
