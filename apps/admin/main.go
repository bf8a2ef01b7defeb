package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/trezcool/escolar/apps/container"
	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
)

var nowFunc = time.Now // mockable

func main() {
	code := 0
	defer func() { os.Exit(code) }()

	c := container.New(container.Options{LogPrefix: "ADMIN"})
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		storage *container.Storage,
		dashboardSvc *dashboard.Service,
		closers *container.Closers,
	) {
		defer func() { _ = closers.Close() }()
		core.ParseEmailTemplates(conf, logger)

		var db *sql.DB
		if storage.DB != nil {
			db = storage.DB.DB
		}
		cli := commandLine{
			db:         db,
			usrRepo:    storage.Users,
			schoolRepo: storage.School,
			dashboard:  dashboardSvc,
			logger:     logger,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Error(fmt.Sprintf("error: %v", err), err)
			}
			code = 1
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "admin: %+v\n", err)
		code = 1
	}
}
