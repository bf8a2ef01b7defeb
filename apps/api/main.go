package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/escolar/apps/api/echo"
	"github.com/trezcool/escolar/apps/container"
	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
	exportsvc "github.com/trezcool/escolar/services/export"
	metricssvc "github.com/trezcool/escolar/services/metrics"
)

func main() {
	c := container.New(container.Options{LogPrefix: "API", Migrate: true})

	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		closers *container.Closers,
		validate *validator.Validate,
		translator ut.Translator,
		usrSvc user.Service,
		schoolSvc *school.Service,
		dashboardSvc *dashboard.Service,
		recorder *metricssvc.Recorder,
		exporter exportsvc.XLSXWriter,
	) {
		if err := run(conf, logger, closers, &echoapi.Options{
			Conf:         conf,
			Logger:       logger,
			Validate:     validate,
			Translator:   translator,
			UserSvc:      usrSvc,
			SchoolSvc:    schoolSvc,
			DashboardSvc: dashboardSvc,
			Exporter:     exporter,
			ParseGrades:  exportsvc.ParseGrades,
			Middlewares:  []echo.MiddlewareFunc{recorder.Middleware()},
		}, recorder); err != nil {
			logger.Fatal(fmt.Sprintf("api: %v", err), err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "api: %+v\n", errors.Wrap(err, "building dependencies"))
		os.Exit(1)
	}
}

func run(conf *core.Config, logger core.Logger, closers *container.Closers, opts *echoapi.Options, recorder *metricssvc.Recorder) error {
	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")
	defer func() {
		if err := closers.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing resources: %v", err), err)
		}
	}()

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", recorder.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	opts.SignalShutdown = func() { shutdown <- syscall.SIGTERM }

	server := echoapi.NewServer(opts)
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}
