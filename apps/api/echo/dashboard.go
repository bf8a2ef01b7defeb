package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type dashboardApi struct {
	auth     *Auth
	users    user.Service
	svc      *dashboard.Service
	exporter Exporter
	validate *validator.Validate
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *Auth, api dashboardApi) {
	dg := g.Group("/dashboard", jwt, auth.activeUserMiddleware(api.users))

	dg.GET("/me/grades", api.myGrades)

	sg := dg.Group("/students/:id", api.studentMiddleware())
	sg.GET("/grades", api.studentGrades)
	sg.GET("/grades/export", api.exportStudentGrades)

	mg := dg.Group("/metrics", auth.staffMiddleware())
	mg.GET("", api.metrics)
	mg.GET("/export", api.exportMetrics)

	ag := dg.Group("", auth.adminMiddleware())
	ag.GET("/snapshots", api.querySnapshots)
	ag.POST("/snapshots", api.takeSnapshot)
	ag.POST("/reports", api.sendReports)
}

type (
	MetricsQuery struct {
		school.Filter
		Interval string `query:"interval" json:"interval" validate:"omitempty,interval"`
	}

	ReportsRequest struct {
		StudentIDs []string `json:"student_ids"`
	}

	ReportsResponse struct {
		Sent int `json:"sent"`
	}
)

// bindMetricsQuery binds & validates the filter, scoped to the context user's groups.
func (api *dashboardApi) bindMetricsQuery(ctx echo.Context, query *MetricsQuery) (school.Filter, stats.Interval, error) {
	if err := ctx.Bind(query); err != nil {
		return school.Filter{}, "", errors.Wrap(err, "binding to MetricsQuery")
	}
	if err := api.validate.Struct(query); err != nil {
		return school.Filter{}, "", err
	}
	ctxUsr, err := api.auth.contextUser(ctx, api.users)
	if err != nil {
		return school.Filter{}, "", errors.Wrap(err, "getting context user")
	}
	return api.svc.ScopeFilter(ctxUsr, query.Filter), stats.Interval(query.Interval), nil
}

func (api *dashboardApi) myGrades(ctx echo.Context) error {
	ctxUsr, err := api.auth.contextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sum, err := api.svc.StudentGrades(ctx.Request().Context(), ctxUsr.ID, queryBool(ctx, "merged"))
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *dashboardApi) studentGrades(ctx echo.Context) error {
	student, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	sum, err := api.svc.StudentGrades(ctx.Request().Context(), student.ID, queryBool(ctx, "merged"))
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *dashboardApi) exportStudentGrades(ctx echo.Context) error {
	student, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	sum, err := api.svc.StudentGrades(ctx.Request().Context(), student.ID, false)
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}

	var buff bytes.Buffer
	if err := api.exporter.WriteStudentGrades(&buff, student, sum); err != nil {
		return errors.Wrap(err, "writing grades workbook")
	}
	return sendWorkbook(ctx, "grades-"+student.Username+".xlsx", &buff)
}

func (api *dashboardApi) metrics(ctx echo.Context) error {
	filter, interval, err := api.bindMetricsQuery(ctx, new(MetricsQuery))
	if err != nil {
		return err
	}
	metrics, err := api.svc.InstitutionMetrics(ctx.Request().Context(), filter, interval)
	if err != nil {
		return errors.Wrap(err, "computing metrics")
	}
	return ctx.JSON(http.StatusOK, metrics)
}

func (api *dashboardApi) exportMetrics(ctx echo.Context) error {
	filter, interval, err := api.bindMetricsQuery(ctx, new(MetricsQuery))
	if err != nil {
		return err
	}
	metrics, err := api.svc.InstitutionMetrics(ctx.Request().Context(), filter, interval)
	if err != nil {
		return errors.Wrap(err, "computing metrics")
	}

	var buff bytes.Buffer
	if err := api.exporter.WriteMetrics(&buff, metrics); err != nil {
		return errors.Wrap(err, "writing metrics workbook")
	}
	return sendWorkbook(ctx, fmt.Sprintf("metrics-%s.xlsx", metrics.GeneratedAt.Format("20060102-150405")), &buff)
}

func (api *dashboardApi) querySnapshots(ctx echo.Context) error {
	filter, interval, err := api.bindMetricsQuery(ctx, new(MetricsQuery))
	if err != nil {
		return err
	}
	var query dashboard.SnapshotFilter
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to SnapshotFilter")
	}
	query.Filter = filter
	query.Interval = interval

	snaps, err := api.svc.QuerySnapshots(ctx.Request().Context(), query)
	if err != nil {
		return errors.Wrap(err, "querying snapshots")
	}
	return ctx.JSON(http.StatusOK, snaps)
}

func (api *dashboardApi) takeSnapshot(ctx echo.Context) error {
	var query MetricsQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to MetricsQuery")
	}
	if err := api.validate.Struct(query); err != nil {
		return err
	}
	ctxUsr, err := api.auth.contextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	snap, err := api.svc.TakeSnapshot(ctx.Request().Context(), query.Filter, stats.Interval(query.Interval), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "taking snapshot")
	}
	return ctx.JSON(http.StatusCreated, snap)
}

func (api *dashboardApi) sendReports(ctx echo.Context) error {
	var data ReportsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReportsRequest")
	}
	sent, err := api.svc.SendGradeReports(ctx.Request().Context(), data.StudentIDs...)
	if err != nil {
		return errors.Wrap(err, "sending grade reports")
	}
	return ctx.JSON(http.StatusAccepted, ReportsResponse{Sent: sent})
}

// studentMiddleware loads the student of the `:id` param, when the context user may see their grades.
func (api *dashboardApi) studentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := api.auth.contextUser(ctx, api.users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			rctx := ctx.Request().Context()
			ok, err := api.svc.CanViewStudent(rctx, ctxUsr, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "checking student visibility")
			}
			if !ok {
				return errHttpNotFound
			}
			student, err := api.users.GetByID(rctx, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set("object", student)
			return next(ctx)
		}
	}
}

func sendWorkbook(ctx echo.Context, filename string, buff *bytes.Buffer) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, xlsxContentType, buff.Bytes())
}
