package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
	emailsvc "github.com/edvora/edvora/services/email"
	logsvc "github.com/edvora/edvora/services/logger"
	"github.com/edvora/edvora/storage/database"
	sqlxrepos "github.com/edvora/edvora/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger, false /* strict */)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	errAndDie(logger, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(ctx, conf)
	cancel()
	errAndDie(logger, err)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger), nil, logger, conf),
		catalogSvc: catalog.NewService(sqlxrepos.NewCatalogRepository(db), nil, nil, logger),
		validate:   validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
