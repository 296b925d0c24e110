package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

type Options struct {
	Address        string
	AppName        string
	SecretKey      string
	Debug          bool
	TestMode       bool
	DisableReqLogs bool
	Days           []timetable.Weekday // visible weekdays

	Store      *timetable.CatalogStore
	Engine     *timetable.Engine
	Subscriber timetable.Subscriber // optional, enables /live
	Metrics    http.Handler         // optional, enables /metrics
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
}

// NewOptions maps the configuration onto server Options.
func NewOptions(conf *core.Config) *Options {
	return &Options{
		Address:        conf.Server.Addr,
		AppName:        conf.AppName,
		SecretKey:      conf.SecretKey,
		Debug:          conf.Debug,
		TestMode:       conf.TestMode,
		DisableReqLogs: conf.Server.DisableReqLogs,
		Days:           timetable.Weekdays(conf.Timetable.Days),
	}
}

type Server struct {
	opts     *Options
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(opts *Options) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Store, "opts.Store"),
		vala.IsNotNil(opts.Engine, "opts.Engine"),
		vala.IsNotNil(opts.Validate, "opts.Validate"),
		vala.IsNotNil(opts.Translator, "opts.Translator"),
		vala.IsNotNil(opts.Logger, "opts.Logger"),
		vala.StringNotEmpty(opts.SecretKey, "opts.SecretKey"),
	).CheckAndPanic()

	if len(opts.Days) == 0 {
		opts.Days = timetable.WorkingDays
	}

	s := &Server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1")
	registerTimetableAPI(v1, jwtMiddleware(s.opts.SecretKey), s.opts)
}

// Start serves until Shutdown or Close is called. Serving errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.AppName+" API!")
}
