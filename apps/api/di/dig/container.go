package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/lms/apps/api/echo"
	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/account"
	"github.com/trezcool/lms/core/classroom"
	"github.com/trezcool/lms/core/token"
	emailsvc "github.com/trezcool/lms/services/email"
	logsvc "github.com/trezcool/lms/services/logger"
	"github.com/trezcool/lms/storage/database"
	inmemdb "github.com/trezcool/lms/storage/database/inmem"
	sqlxrepos "github.com/trezcool/lms/storage/database/sqlx"
	filestore "github.com/trezcool/lms/storage/files"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

const dbSetupTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the database handle backing the stores.
type DBCloser func() error

// Stores are provided together so both always share the same database.
type Stores struct {
	dig.Out
	Accounts account.Store
	Classes  classroom.Store
	Closer   DBCloser
}

func newStdLogger(conf *core.Config, component string) *logrus.Logger {
	std := logrus.New()
	std.SetOutput(os.Stdout)
	if conf.Debug {
		std.SetLevel(logrus.DebugLevel)
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		std.SetFormatter(&logrus.JSONFormatter{})
	}
	std.AddHook(componentHook(component))
	return std
}

// componentHook tags every entry with the component that logged it.
type componentHook string

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	e.Data["component"] = string(h)
	return nil
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(newStdLogger(conf, "api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(newStdLogger(conf, "db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	account.InitValidators(validate, translator)
	return validate
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) (Stores, error) {
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case EngineMemory:
		logger.Warn("using the in-memory store: data is lost on exit")
		db := inmemdb.New()
		return Stores{
			Accounts: inmemdb.NewAccountStore(db),
			Classes:  inmemdb.NewClassStore(db),
			Closer:   func() error { return nil },
		}, nil

	case EnginePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
		defer cancel()

		if conf.Database.AdminUser != "" {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return Stores{}, errors.Wrap(err, "creating database")
			}
		}
		db, err := database.OpenSQLX(ctx, conf)
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening database")
		}
		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return Stores{}, errors.Wrap(err, "migrating database")
		}
		logger.Info(fmt.Sprintf("connected to %s/%s", conf.Database.Address(), conf.Database.Name))
		return Stores{
			Accounts: sqlxrepos.NewAccountStore(db),
			Classes:  sqlxrepos.NewClassStore(db),
			Closer:   db.Close,
		}, nil
	}
	return Stores{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func newFileStore(conf *core.Config) (core.FileStore, error) {
	switch conf.Storage.Backend {
	case "s3":
		return filestore.NewS3Store(context.Background(), conf.Storage)
	case "", "local":
		return filestore.NewLocalStore(conf.Storage.LocalDir)
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}

func newTokenIssuer(conf *core.Config) (*token.Issuer, error) {
	return token.NewIssuer(conf.SecretKey, conf.AppName, conf.JWTExpirationDelta)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServer(
	conf *core.Config,
	accSvc *account.Service,
	clsSvc *classroom.Service,
	translator ut.Translator,
	logger core.Logger,
) *echoapi.Server {
	return echoapi.NewServer(conf, &echoapi.Deps{
		AccountSvc: accSvc,
		ClassSvc:   clsSvc,
		Translator: translator,
		Logger:     logger,
	})
}

// New returns a new dependency injection dig.Container, configured from the environment.
func New() *dig.Container {
	return Build(core.NewConfig)
}

// Build returns a dig.Container whose configuration comes from newConfig.
func Build(newConfig interface{}) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newStores))
	must(c.Provide(newFileStore))
	must(c.Provide(newTokenIssuer, dig.As(new(account.Tokens))))
	must(c.Provide(newEmailService))
	must(c.Provide(account.NewService))
	must(c.Provide(classroom.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
