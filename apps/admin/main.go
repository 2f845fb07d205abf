package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/storage/database"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	var (
		db      *sqlx.DB
		usrRepo user.Repository
	)
	if conf.Database.InMemory {
		mem, _ := dummydb.Open()
		usrRepo = dummydb.NewUserRepository(mem)
	} else {
		errAndDie(database.CreateIfNotExist(conf))
		var err error
		db, err = database.Open(conf)
		errAndDie(err)
		usrRepo = sqlxrepos.NewUserRepository(db)
	}

	cli := commandLine{
		db:       db,
		usrSvc:   user.NewService(usrRepo),
		validate: validate,
	}
	err := cli.run(context.Background(), os.Args)
	if db != nil {
		_ = db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
