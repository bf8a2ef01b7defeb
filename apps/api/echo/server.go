package echoapi

import (
	"context"
	"io"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

type (
	// Exporter renders dashboards & import templates as spreadsheets.
	Exporter interface {
		dashboard.ReportWriter
		WriteMetrics(w io.Writer, metrics stats.InstitutionMetrics) error
		WriteGradesTemplate(w io.Writer, students []user.User) error
	}

	// GradesParser reads the grade rows of an uploaded spreadsheet.
	GradesParser func(r io.Reader) ([]school.GradeRow, []school.RowError, error)

	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        user.Service
		SchoolSvc      *school.Service
		DashboardSvc   *dashboard.Service
		Exporter       Exporter
		ParseGrades    GradesParser
		Middlewares    []echo.MiddlewareFunc
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		auth *Auth
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		auth: NewAuth(opts.Conf),
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.opts.Middlewares...)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.auth, s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := s.auth.Middleware()

	registerUserAPI(v1, jwt, s.auth, s.opts.UserSvc, s.opts.Validate)
	registerCatalogAPI(v1, jwt, s.auth, catalogApi{
		users:       s.opts.UserSvc,
		svc:         s.opts.SchoolSvc,
		dashboard:   s.opts.DashboardSvc,
		exporter:    s.opts.Exporter,
		parseGrades: s.opts.ParseGrades,
		auth:        s.auth,
	})
	registerDashboardAPI(v1, jwt, s.auth, dashboardApi{
		users:    s.opts.UserSvc,
		svc:      s.opts.DashboardSvc,
		exporter: s.opts.Exporter,
		validate: s.opts.Validate,
		auth:     s.auth,
	})
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
