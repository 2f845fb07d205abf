package dig_container

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/scoring"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/storage/database"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
	redisstore "github.com/trezcool/alama/storage/redis"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Stores holds the repositories of the configured storage backends.
	Stores struct {
		dig.Out
		UserRepo       user.Repository
		OTPRepo        otp.Repository
		PredictionRepo prediction.Repository
		Closer         StoreCloser
	}

	// StoreCloser releases every storage connection.
	StoreCloser func() error

	serverDeps struct {
		dig.In
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		Tokens        *auth.TokenService
		Guard         *auth.Guard
		UserSvc       *user.Service
		OTPSvc        *otp.Service
		PredictionSvc *prediction.Service
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// newStores opens the in-memory store, or postgres (created & migrated if needed) plus redis when it holds the OTPs.
func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	logger := loggerParam.Logger

	if conf.Database.InMemory {
		logger.Info("using the in-memory database")
		db, _ := dummydb.Open()
		return Stores{
			UserRepo:       dummydb.NewUserRepository(db),
			OTPRepo:        dummydb.NewOTPRepository(db),
			PredictionRepo: dummydb.NewPredictionRepository(db),
			Closer:         func() error { return nil },
		}
	}

	ctx := context.Background()
	db, err := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}()
	if err != nil {
		logger.Fatal("setting up database", errors.Wrap(err, "setting up database"))
	}

	stores := Stores{
		UserRepo:       sqlxrepos.NewUserRepository(db),
		OTPRepo:        sqlxrepos.NewOTPRepository(db),
		PredictionRepo: sqlxrepos.NewPredictionRepository(db),
		Closer:         db.Close,
	}

	if conf.OTP.Store == "redis" {
		rdb, err := redisstore.Open(ctx, conf)
		if err != nil {
			logger.Fatal("connecting to redis", err)
		}
		stores.OTPRepo = redisstore.NewOTPRepository(rdb)
		stores.Closer = func() error {
			rErr := rdb.Close()
			if err := db.Close(); err != nil {
				return err
			}
			return rErr
		}
	}
	return stores
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newGuard(tokens *auth.TokenService, users *user.Service) *auth.Guard {
	return auth.NewGuard(tokens, users)
}

func newOTPService(conf *core.Config, repo otp.Repository, users *user.Service, mailSvc core.EmailService, logger core.Logger) *otp.Service {
	return otp.NewService(conf, repo, users, mailSvc, logger)
}

func newModelCache(conf *core.Config) *scoring.Cache {
	return scoring.NewCache(conf.ResolvePath(conf.Scoring.ModelPath), conf.ResolvePath(conf.Scoring.EncoderPath))
}

func newPredictionService(models *scoring.Cache, repo prediction.Repository, users *user.Service, logger core.Logger) *prediction.Service {
	return prediction.NewService(models, repo, users, logger)
}

func newShutdownChannel() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(conf *core.Config, shutdown chan os.Signal, deps serverDeps) *echoapi.Server {
	return echoapi.NewServer(conf, shutdown, &echoapi.Deps{
		Logger:        deps.Logger,
		Validate:      deps.Validate,
		Translator:    deps.Translator,
		Tokens:        deps.Tokens,
		Guard:         deps.Guard,
		UserSvc:       deps.UserSvc,
		OTPSvc:        deps.OTPSvc,
		PredictionSvc: deps.PredictionSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(auth.NewTokenService))
	must(c.Provide(newGuard))
	must(c.Provide(newOTPService))
	must(c.Provide(newModelCache))
	must(c.Provide(newPredictionService))
	must(c.Provide(newShutdownChannel))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
