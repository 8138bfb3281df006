package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/core/token"
	"github.com/trezcool/lms/services/email"
	"github.com/trezcool/lms/storage/database/inmem"
	"github.com/trezcool/lms/storage/files"
	"github.com/trezcool/lms/tests"
)

type testEnv struct {
	cli      *commandLine
	out      *bytes.Buffer
	accounts account.Store
	classes  classroom.Store
}

func setup(t *testing.T) testEnv {
	t.Helper()
	conf := testutil.Config(t)
	logger := testutil.Logger()
	validate := testutil.Validator()

	db := inmemdb.New()
	accounts := inmemdb.NewAccountStore(db)
	classes := inmemdb.NewClassStore(db)

	tokens, err := token.NewIssuer(conf.SecretKey, conf.AppName, conf.JWTExpirationDelta)
	require.NoError(t, err)
	files, err := filestore.NewLocalStore(conf.Storage.LocalDir)
	require.NoError(t, err)
	accSvc, err := account.NewService(conf, accounts, tokens, files, emailsvc.NewConsoleServiceMock(conf, logger), validate, logger)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	return testEnv{
		cli: &commandLine{
			accSvc: accSvc,
			clsSvc: classroom.NewService(classes, validate),
			out:    out,
		},
		out:      out,
		accounts: accounts,
		classes:  classes,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string   // typed at the password prompt
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (env testEnv) run(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(int) ([]byte, error) { return []byte(tt.pwd), nil }
			env.out.Reset()

			err := env.cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, env.out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	runMigrationsFunc = func(_ context.Context, _ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	env.run(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)

	env.run(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no names", args: []string{"adduser", "-email", "root@x.com"}, pwd: "pwd", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "root@x.com", "-first", "Root", "-last", "User"}, wantErr: errHelp},
		{
			name:    "create",
			args:    []string{"adduser", "-email", "Root@X.com", "-username", "root", "-first", "Root", "-last", "User"},
			pwd:     "whatever",
			wantOut: "admin root@x.com created",
		},
		{
			name:    "duplicate",
			args:    []string{"adduser", "-email", "root@x.com", "-first", "Root", "-last", "User"},
			pwd:     "whatever",
			wantErr: account.ErrDuplicateAccount,
		},
	})

	idt, err := env.accounts.FindByIdentifier(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, idt.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	idt := testutil.CreateAccount(t, env.accounts, account.RoleTeacher, "awe@test.cd", "awe", "mdr", true)

	env.run(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: account.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", "AWE"}, pwd: "lol", wantOut: "password of AWE updated"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "awe@test.cd"}, pwd: "lmao"},
	})

	refreshed, err := env.accounts.FindByIdentifier(context.Background(), "awe")
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, idt.Account.PasswordHash), "password not updated")
	assert.True(t, account.NewHasher(0).Verify("lmao", refreshed.PasswordHash))
}

func Test_commandLine_deactivate(t *testing.T) {
	env := setup(t)
	testutil.CreateAccount(t, env.accounts, account.RoleStudent, "kid@test.cd", "kid", "pwd", true)

	env.run(t, []cliTest{
		{name: "no args", args: []string{"deactivate"}, wantErr: errHelp},
		{name: "account not found", args: []string{"deactivate", "-username", "lol"}, wantErr: account.ErrNotFound},
		{name: "deactivate", args: []string{"deactivate", "-username", "kid"}, wantOut: "kid deactivated"},
	})

	_, err := env.accounts.FindByEmailOrUsername(context.Background(), "kid@test.cd", "kid")
	assert.Equal(t, account.ErrNotFound, err)
}

func Test_commandLine_recount(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.classes, "Grade 1")
	testutil.CreateClass(t, env.classes, "Grade 2")

	env.run(t, []cliTest{
		{name: "all", args: []string{"recount"}, wantOut: "2 classes recounted"},
		{name: "one", args: []string{"recount", "-class", cls.ID}, wantOut: "Grade 1: 0 students"},
		{name: "unknown class", args: []string{"recount", "-class", "2f1a3d4c-9c3e-4f51-8a55-3e1f0d7f6b21"}, wantErr: classroom.ErrClassNotFound},
	})
}

func Test_commandLine_audits(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateAccount(t, env.accounts, account.RoleTeacher, "t@test.cd", "teach", "pwd", true)
	_, err := env.cli.accSvc.PromoteToAdmin(context.Background(), teacher, account.PromoteRequest{Password: "pwd", Reason: "head of school"})
	require.NoError(t, err)

	env.run(t, []cliTest{
		{name: "no args", args: []string{"audits"}, wantErr: errHelp},
		{name: "list", args: []string{"audits", "-account", teacher.Account.ID}, wantOut: "teacher  admin"},
		{name: "reason", args: []string{"audits", "-account", teacher.Account.ID}, wantOut: "head of school"},
	})
}
