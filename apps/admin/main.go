package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/user"
	logsvc "github.com/youknow/checklist/services/logger"
	"github.com/youknow/checklist/storage/database"
	inmemdb "github.com/youknow/checklist/storage/database/inmem"
	sqlxrepos "github.com/youknow/checklist/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger("ADMIN", os.Stderr, conf)
	logger.Enable(!conf.Debug)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{validate: validate, out: os.Stdout}

	if conf.Database.InMemory {
		cli.usrSvc = user.NewService(inmemdb.NewUserRepository(inmemdb.Open()))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(ctx, conf)
		cancel()
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()

		cli.db = db
		cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db))
	}

	if err := cli.run(os.Args[1:]); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for field, msg := range core.TranslateErrors(verrs, translator) {
				_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
			}
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
