package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	accSvc *account.Service
	clsSvc *classroom.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-username USERNAME] -first FIRST -last LAST - create an admin account")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset an account's password")
	fmt.Fprintln(cli.out, "  deactivate -username USERNAME|EMAIL - deactivate an account")
	fmt.Fprintln(cli.out, "  recount [-class ID] - recompute class student counts (all classes by default)")
	fmt.Fprintln(cli.out, "  audits -account ID - list the role changes of an account")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The admin's email. The password will be prompted next.")
	addUserUname := addUserCmd.String("username", "", "The admin's username (optional).")
	addUserFirst := addUserCmd.String("first", "", "The admin's first name.")
	addUserLast := addUserCmd.String("last", "", "The admin's last name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The account's username or email. The password will be prompted next.")

	deactivateCmd := flag.NewFlagSet("deactivate", flag.ExitOnError)
	deactivateUname := deactivateCmd.String("username", "", "The account's username or email.")

	recountCmd := flag.NewFlagSet("recount", flag.ExitOnError)
	recountClass := recountCmd.String("class", "", "The class ID. Every class is recounted when empty.")

	auditsCmd := flag.NewFlagSet("audits", flag.ExitOnError)
	auditsAccount := auditsCmd.String("account", "", "The account ID.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserFirst == "" || *addUserLast == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserUname, *addUserFirst, *addUserLast, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "deactivate":
		if err := deactivateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deactivateUname == "" {
			deactivateCmd.Usage()
			return errHelp
		}
		return cli.deactivate(*deactivateUname)

	case "recount":
		if err := recountCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.recount(*recountClass)

	case "audits":
		if err := auditsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *auditsAccount == "" {
			auditsCmd.Usage()
			return errHelp
		}
		return cli.audits(*auditsAccount)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
