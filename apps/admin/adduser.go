package main

import (
	"context"
	"fmt"
)

// addUser creates an admin account, with the teacher profile admins own.
func (cli *commandLine) addUser(email, uname, firstName, lastName, pwd string) error {
	idt, err := cli.accSvc.CreateAdmin(context.Background(), email, uname, firstName, lastName, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %s created (id: %s)\n", idt.Account.Email, idt.Account.ID)
	return nil
}
