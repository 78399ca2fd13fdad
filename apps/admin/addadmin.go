package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

// addAdmin creates or promotes an admin account: the identity record first,
// then the matching profile row.
func (cli *commandLine) addAdmin(email, name, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	ident, err := cli.identityRepo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != auth.ErrIdentityNotFound {
			return err
		}
		ident = auth.Identity{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      name,
			Role:      user.RoleAdmin,
			CreatedAt: nowFunc().UTC(),
		}
		if err = ident.SetPassword(pwd); err != nil {
			return err
		}
		if ident, err = cli.identityRepo.CreateIdentity(ctx, ident); err != nil {
			return err
		}
	} else {
		if err = ident.SetPassword(pwd); err != nil {
			return err
		}
		if ident, err = cli.identityRepo.UpdateIdentity(ctx, ident); err != nil {
			return err
		}
	}

	usr, err := cli.profileRepo.GetProfileByID(ctx, ident.ID)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := nowFunc().UTC()
		_, err = cli.profileRepo.CreateProfile(ctx, user.User{
			ID:        ident.ID,
			Email:     email,
			Name:      name,
			Role:      user.RoleAdmin,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	}

	usr.Role = user.RoleAdmin
	usr.IsActive = true
	usr.UpdatedAt = nowFunc().UTC()
	_, err = cli.profileRepo.UpdateProfile(ctx, usr)
	return err
}
