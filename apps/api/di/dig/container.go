package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/youknow/checklist/apps/api/echo"
	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
	"github.com/youknow/checklist/core/user"
	cachesvc "github.com/youknow/checklist/services/cache"
	emailsvc "github.com/youknow/checklist/services/email"
	logsvc "github.com/youknow/checklist/services/logger"
	"github.com/youknow/checklist/storage/database"
	inmemdb "github.com/youknow/checklist/storage/database/inmem"
	sqlxrepos "github.com/youknow/checklist/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is what the storage layer hands over to the rest of the app.
type Storage struct {
	dig.Out
	Users     user.Repository
	Checklist checklist.Repository
	Closer    io.Closer `name:"dbCloser"`
}

type DBCloserParam struct {
	dig.In
	Closer io.Closer `name:"dbCloser"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger("API", os.Stdout, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger("DB", os.Stdout, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("using in-memory storage, data is lost on shutdown")
		db := inmemdb.Open()
		return Storage{
			Users:     inmemdb.NewUserRepository(db),
			Checklist: inmemdb.NewChecklistRepository(db),
			Closer:    nopCloser{},
		}
	}

	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		Users:     sqlxrepos.NewUserRepository(db),
		Checklist: sqlxrepos.NewChecklistRepository(db),
		Closer:    db,
	}
}

func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if !conf.Cache.Enabled {
		return cachesvc.NewNoopCache()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cachesvc.NewRedisClient(ctx, conf)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis, stats caching disabled: %v", err), err)
		return cachesvc.NewNoopCache()
	}
	return cachesvc.NewRedisCache(client, conf.Cache.TTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newDirectory(svc user.ServiceInterface) checklist.Directory { return svc }

func newChecklistService(
	repo checklist.Repository,
	users checklist.Directory,
	mailer core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
	cache core.Cache,
) checklist.ServiceInterface {
	return checklist.NewService(repo, users, mailer, logger, validate, conf, checklist.WithCache(cache))
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(newDirectory))
	must(c.Provide(newChecklistService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
