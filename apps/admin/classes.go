package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

func (cli *commandLine) recount(classID string) error {
	ctx := context.Background()
	if classID == "" {
		n, err := cli.clsSvc.RecountAll(ctx)
		if err != nil {
			return errors.Cause(err)
		}
		fmt.Fprintf(cli.out, "%d classes recounted\n", n)
		return nil
	}

	cls, err := cli.clsSvc.Recount(ctx, classID)
	if err != nil {
		return errors.Cause(err)
	}
	fmt.Fprintf(cli.out, "%s: %d students\n", cls.Name, cls.StudentCount)
	return nil
}
