package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/user"
)

// addUser updates or creates an active user.User with the given roles.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil && errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	create := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		create = true
		usr = user.User{Username: uname, Email: email, CreatedAt: nowFunc().UTC()}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = nowFunc().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}

	if create {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return errors.Wrap(err, "creating user")
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
