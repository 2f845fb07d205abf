package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/user"
)

type (
	Deps struct {
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		Tokens        *auth.TokenService
		Guard         *auth.Guard
		UserSvc       *user.Service
		OTPSvc        *otp.Service
		PredictionSvc *prediction.Service
	}

	Server struct {
		conf     *core.Config
		app      *echo.Echo
		deps     *Deps
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer builds the API. shutdown receives OS signals, and a syscall.SIGTERM when a handler hits a core shutdown error.
func NewServer(conf *core.Config, shutdown chan os.Signal, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	registerAuthAPI(s.app.Group("/auth"), s.deps)

	api := s.app.Group("/api")
	registerPredictionAPI(api, s.deps)
	registerTeacherAPI(api.Group("/teacher", requireRole(s.deps.Guard, user.RoleTeacher)), s.deps)
	registerAdminAPI(api.Group("/admin", requireRole(s.deps.Guard, user.RoleAdmin)), s.deps)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
