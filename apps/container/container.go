// Package container wires the app dependencies for the api & admin binaries.
package container

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
	cachesvc "github.com/trezcool/escolar/services/cache"
	emailsvc "github.com/trezcool/escolar/services/email"
	exportsvc "github.com/trezcool/escolar/services/export"
	logsvc "github.com/trezcool/escolar/services/logger"
	metricssvc "github.com/trezcool/escolar/services/metrics"
	snapshotsvc "github.com/trezcool/escolar/services/snapshot"
	"github.com/trezcool/escolar/storage/database"
	dummydb "github.com/trezcool/escolar/storage/database/dummy"
	boiledrepos "github.com/trezcool/escolar/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/escolar/storage/database/sqlx"
)

const connectTimeout = 10 * time.Second

type (
	Options struct {
		LogPrefix string // e.g. "API"
		Migrate   bool   // apply pending migrations on start
	}

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Storage holds the repositories of the configured database driver.
	Storage struct {
		DB     *sqlx.DB // nil with the "memory" driver
		Users  user.Repository
		School school.Repository
	}

	// Closers are run on shutdown, last added first.
	Closers struct {
		mu  sync.Mutex
		fns []func() error
	}

	dashboardParams struct {
		dig.In
		Conf     *core.Config
		Logger   core.Logger
		Storage  *Storage
		Users    user.Service
		Mailer   core.EmailService
		Recorder *metricssvc.Recorder
		Writer   exportsvc.XLSXWriter
		Closers  *Closers
	}
)

func (c *Closers) Add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

// Close runs every closer and returns the first error.
func (c *Closers) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil && first == nil {
			first = err
		}
	}
	c.fns = nil
	return first
}

func newLogger(prefix string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		return logsvc.NewRollbarLogger(log.New(os.Stdout, prefix+" : ", log.LstdFlags), conf)
	}
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newStorage(migrate bool) func(conf *core.Config, dbLogger DBLoggerParam, closers *Closers) (*Storage, error) {
	return func(conf *core.Config, dbLogger DBLoggerParam, closers *Closers) (*Storage, error) {
		if conf.Database.InMemory() {
			db, err := dummydb.Open()
			if err != nil {
				return nil, errors.Wrap(err, "opening in-memory database")
			}
			dbLogger.Logger.Warn("using the in-memory database, data will be lost on exit")
			return &Storage{Users: dummydb.NewUserRepository(db), School: dummydb.NewSchoolRepository(db)}, nil
		}

		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = database.Migrate(db.DB, "up"); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		closers.Add(func() error {
			dbLogger.Logger.Info("closing database")
			return db.Close()
		})
		return &Storage{
			DB:     db,
			Users:  sqlxrepos.NewUserRepository(db),
			School: boiledrepos.NewSchoolRepository(db),
		}, nil
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidator registers the custom validations of every domain package.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	dashboard.InitValidators(validate, translator)
	return validate
}

func newDashboardService(p dashboardParams) (*dashboard.Service, error) {
	deps := dashboard.Deps{
		Repo:    p.Storage.School,
		Users:   p.Users,
		Logger:  p.Logger,
		Mailer:  p.Mailer,
		Reports: p.Writer,
	}
	if p.Recorder != nil {
		deps.Recorder = p.Recorder
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if p.Conf.Redis.Enabled() {
		client := cachesvc.NewRedisClient(p.Conf)
		cache := cachesvc.NewRedisCache(client, p.Conf.Redis.TTL)
		if err := cache.Ping(ctx); err != nil {
			// metrics are computed on every request without cache
			p.Logger.Warn(fmt.Sprintf("redis unavailable, metrics cache disabled: %v", err), err)
			_ = client.Close()
		} else {
			deps.Cache = cache
			p.Closers.Add(client.Close)
		}
	}

	if p.Conf.Mongo.Enabled() {
		client, err := snapshotsvc.Connect(ctx, p.Conf)
		if err != nil {
			return nil, err
		}
		store := snapshotsvc.NewMongoStore(client.Database(p.Conf.Mongo.Database), p.Conf.Mongo.Collection)
		if err := store.EnsureIndexes(ctx); err != nil {
			p.Logger.Warn(fmt.Sprintf("snapshot indexes: %v", err), err)
		}
		deps.Snapshots = store
		p.Closers.Add(func() error { return client.Disconnect(context.Background()) })
	}

	return dashboard.NewService(p.Conf, deps), nil
}

// New returns a new dependency injection dig.Container.
func New(opts Options) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Closers { return new(Closers) }))
	must(c.Provide(newLogger(opts.LogPrefix)))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage(opts.Migrate)))
	must(c.Provide(func(s *Storage) user.Repository { return s.Users }))
	must(c.Provide(func(s *Storage) school.Repository { return s.School }))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(metricssvc.NewRecorder))
	must(c.Provide(exportsvc.NewXLSXWriter))
	must(c.Provide(newDashboardService))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
