package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/core/token"
	emailsvc "github.com/trezcool/lms/services/email"
	logsvc "github.com/trezcool/lms/services/logger"
	"github.com/trezcool/lms/storage/database"
	sqlxrepos "github.com/trezcool/lms/storage/database/sqlx"
	filestore "github.com/trezcool/lms/storage/files"
)

var logger core.Logger

func main() {
	std := logrus.New()
	std.SetOutput(os.Stderr)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatal(err)
	}
	l := logsvc.NewRollbarLogger(std, conf)
	l.Enable(false)
	logger = l

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := database.OpenSQLX(ctx, conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	account.InitValidators(validate, translator)
	tokens, err := token.NewIssuer(conf.SecretKey, conf.AppName, conf.JWTExpirationDelta)
	errAndDie(err)
	files, err := filestore.NewLocalStore(conf.Storage.LocalDir)
	errAndDie(err)
	accSvc, err := account.NewService(
		conf,
		sqlxrepos.NewAccountStore(db),
		tokens,
		files,
		emailsvc.NewConsoleService(conf, logger),
		validate,
		logger,
	)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		accSvc: accSvc,
		clsSvc: classroom.NewService(sqlxrepos.NewClassStore(db), validate),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
