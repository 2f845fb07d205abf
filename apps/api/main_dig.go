package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/alama/apps/api/di/dig"
	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scoring"
	"github.com/trezcool/alama/core/user"
)

type apiParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	DBLogger    core.Logger `name:"dbLogger"`
	CloseStores dig_container.StoreCloser
	Validate    *validator.Validate
	Translator  ut.Translator
	Models      *scoring.Cache
	Server      *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(p apiParams) {
	p.Logger.Info(fmt.Sprintf(
		"Application initializing : version %q (%s), storage %s, otp store %s",
		p.Conf.Build, p.Conf.Env, storageName(p.Conf), p.Conf.OTP.Store,
	))
	defer func() {
		if err := p.CloseStores(); err != nil {
			p.DBLogger.Error("closing stores", err)
		}
	}()
	defer p.Logger.Info("Application stopped")

	if err := initialize(p); err != nil {
		p.Logger.Fatal("initializing application", err)
	}
	publishVars(p.Conf)
	go serveDebug(p)

	go p.Server.Start()
	awaitShutdown(p)
}

func initialize(p apiParams) error {
	core.InitValidators(p.Validate, p.Translator)
	user.InitValidators(p.Validate, p.Translator)

	if err := core.ParseEmailTemplates(); err != nil {
		return err
	}

	// predictions report the missing artifacts until they are deployed
	if _, err := p.Models.Scorer(); err != nil {
		p.Logger.Warn("scoring model not loaded", err)
	}
	if _, err := p.Models.Encoder(); err != nil {
		p.Logger.Warn("scoring encoder not loaded", err)
	}
	return nil
}

func storageName(conf *core.Config) string {
	if conf.Database.InMemory {
		return "memory"
	}
	return conf.Database.Engine + "@" + conf.Database.Address()
}

// publishVars exposes build info under /debug/vars.
func publishVars(conf *core.Config) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(storageName(conf))
	expvar.NewString("otpStore").Set(conf.OTP.Store)
	expvar.NewString("modelPath").Set(conf.ResolvePath(conf.Scoring.ModelPath))
}

// serveDebug serves /debug/pprof and /debug/vars, registered on the default mux by their packages.
func serveDebug(p apiParams) {
	if err := http.ListenAndServe(p.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
		p.Logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
	}
}

func awaitShutdown(p apiParams) {
	select {
	case err := <-p.Server.Errors():
		p.Logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-p.Server.ShutdownSignal():
		p.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), p.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := p.Server.Shutdown(ctx); err != nil {
			p.Logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = p.Server.Close(); err != nil {
				p.Logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
