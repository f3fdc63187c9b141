package main

import (
	"context"

	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

// addUser creates an account, enforcing the same rules as the sign up endpoint.
func (cli *commandLine) addUser(name, email, role, pwd string) (user.Account, error) {
	ctx := context.Background()
	na := user.NewAccount{
		Role:            role,
		FullName:        name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := na.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.Account{}, err
	}
	return cli.usrSvc.SignUp(ctx, na)
}

func (cli *commandLine) addSubject(name, description, icon string) (catalog.Subject, error) {
	ns := catalog.NewSubject{Name: name, Description: description, Icon: icon}
	if err := ns.Validate(cli.validate); err != nil {
		return catalog.Subject{}, err
	}
	return cli.catalogSvc.AddSubject(context.Background(), ns)
}
