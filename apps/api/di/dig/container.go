package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/edvora/edvora/apps/api/echo"
	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/chat"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/selection"
	"github.com/edvora/edvora/core/user"
	cachesvc "github.com/edvora/edvora/services/cache"
	emailsvc "github.com/edvora/edvora/services/email"
	eventsvc "github.com/edvora/edvora/services/events"
	logsvc "github.com/edvora/edvora/services/logger"
	storagesvc "github.com/edvora/edvora/services/storage"
	"github.com/edvora/edvora/storage/database"
	sqlxrepos "github.com/edvora/edvora/storage/database/sqlx"
)

const setUpTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closers holds the connections to release on shutdown, last opened first.
type Closers struct {
	funcs []func() error
}

func (c *Closers) add(f func() error) { c.funcs = append(c.funcs, f) }

func (c *Closers) Close() error {
	var first error
	for i := len(c.funcs) - 1; i >= 0; i-- {
		if err := c.funcs[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam, closers *Closers) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	closers.add(db.Close)
	return db, db
}

// newCache returns a nil analytics.Cache when Redis is not configured.
func newCache(conf *core.Config, logger core.Logger, closers *Closers) analytics.Cache {
	if conf.Redis.Address == "" {
		logger.Info("redis not configured: analytics are computed on every request")
		return nil
	}
	cache, err := cachesvc.NewRedisCache(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	closers.add(cache.Close)
	return cache
}

// newEventPublisher returns a nil core.EventPublisher when RabbitMQ is not configured.
func newEventPublisher(conf *core.Config, logger core.Logger, closers *Closers) core.EventPublisher {
	if conf.RabbitMQ.URL == "" {
		logger.Info("rabbitmq not configured: events are not published")
		return nil
	}
	pub, err := eventsvc.NewRabbitMQPublisher(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up event publisher: %v", err), err)
	}
	closers.add(pub.Close)
	return pub
}

// newThumbnailStore returns a nil catalog.ThumbnailStore when object storage is not configured.
func newThumbnailStore(conf *core.Config, logger core.Logger) catalog.ThumbnailStore {
	if conf.S3.Endpoint == "" {
		logger.Info("object storage not configured: thumbnail uploads are disabled")
		return nil
	}
	store, err := storagesvc.NewMinioStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()
	if err = store.EnsureBucket(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("setting up object storage: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
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

func newProgressService(
	repo progress.Repository,
	catalogSvc catalog.ServiceInterface,
	usrSvc user.ServiceInterface,
	cache analytics.Cache,
	events core.EventPublisher,
	logger core.Logger,
) progress.ServiceInterface {
	return progress.NewService(repo, catalogSvc, usrSvc, analytics.NewInvalidator(cache), events, logger)
}

func newSelectionService(
	repo selection.Repository,
	catalogSvc catalog.ServiceInterface,
	usrSvc user.ServiceInterface,
	progressSvc progress.ServiceInterface,
) selection.ServiceInterface {
	return selection.NewService(repo, catalogSvc, usrSvc, progressSvc)
}

func newAnalyticsService(
	repo analytics.Repository,
	progressSvc progress.ServiceInterface,
	usrSvc user.ServiceInterface,
	cache analytics.Cache,
	logger core.Logger,
	conf *core.Config,
) analytics.ServiceInterface {
	return analytics.NewService(repo, progressSvc, usrSvc, cache, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Closers { return new(Closers) }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newThumbnailStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCatalogRepository))
	must(c.Provide(sqlxrepos.NewSelectionRepository))
	must(c.Provide(sqlxrepos.NewProgressRepository))
	must(c.Provide(sqlxrepos.NewAnalyticsRepository))
	must(c.Provide(sqlxrepos.NewChatRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(newProgressService))
	must(c.Provide(newSelectionService))
	must(c.Provide(newAnalyticsService))
	must(c.Provide(chat.NewService))

	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
