package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := cli.accSvc.ResetPassword(context.Background(), uname, pwd); err != nil {
		return errors.Cause(err)
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", uname)
	return nil
}

func (cli *commandLine) deactivate(uname string) error {
	if err := cli.accSvc.Deactivate(context.Background(), uname); err != nil {
		return errors.Cause(err)
	}
	fmt.Fprintf(cli.out, "%s deactivated\n", uname)
	return nil
}

// audits prints the role changes of an account, oldest first.
func (cli *commandLine) audits(accountID string) error {
	audits, err := cli.accSvc.ListRoleChanges(context.Background(), accountID)
	if err != nil {
		return errors.Cause(err)
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tFROM\tTO\tBY\tREASON")
	for _, a := range audits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.PreviousRole, a.NewRole, a.ChangedBy, a.Reason)
	}
	return w.Flush()
}
