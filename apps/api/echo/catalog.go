package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
)

const maxUploadSize = 5 << 20 // 5 MiB

var errGrpNotFoundInCtx = errors.New("group object not found in echo.Context")

type catalogApi struct {
	auth        *Auth
	users       user.Service
	svc         *school.Service
	dashboard   *dashboard.Service
	exporter    Exporter
	parseGrades GradesParser
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *Auth, api catalogApi) {
	ag := g.Group("", jwt, auth.activeUserMiddleware(api.users))

	ag.GET("/subjects", api.querySubjects)
	ag.GET("/periods", api.queryPeriods)
	ag.GET("/groups", api.queryGroups, auth.staffMiddleware())

	gg := ag.Group("/groups/:id", auth.staffMiddleware(), api.groupMiddleware())
	gg.GET("", api.retrieveGroup)
	gg.GET("/grades/template", api.gradesTemplate)
	gg.POST("/grades/import", api.importGrades)
}

type GroupsQuery struct {
	school.Filter
	TeacherID  string `query:"teacher"`
	ActiveOnly bool   `query:"active"`
}

func (api *catalogApi) querySubjects(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	subjects, err := api.svc.Subjects(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *catalogApi) queryPeriods(ctx echo.Context) error {
	periods, err := api.svc.Periods(ctx.Request().Context(), queryBool(ctx, "active"))
	if err != nil {
		return errors.Wrap(err, "querying periods")
	}
	if periods == nil {
		periods = []school.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *catalogApi) queryGroups(ctx echo.Context) error {
	var query GroupsQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []school.Group{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := api.auth.contextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := query.Filter
	filter.TeacherID = query.TeacherID
	filter = api.dashboard.ScopeFilter(ctxUsr, filter)

	groups, err := api.svc.Groups(
		ctx.Request().Context(),
		school.GroupFilter{Filter: filter, ActiveOnly: query.ActiveOnly},
		ordering.Orderings,
	)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []school.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *catalogApi) retrieveGroup(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(school.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *catalogApi) gradesTemplate(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(school.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}

	students, err := api.svc.GroupStudents(ctx.Request().Context(), grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying group students")
	}

	var buff bytes.Buffer
	if err := api.exporter.WriteGradesTemplate(&buff, students); err != nil {
		return errors.Wrap(err, "writing grades template")
	}
	return sendWorkbook(ctx, "grades-template-"+grp.ID+".xlsx", &buff)
}

func (api *catalogApi) importGrades(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(school.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "an excel file is required"})
	}
	if fh.Size > maxUploadSize {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	rows, rowErrs, err := api.parseGrades(f)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: errors.Cause(err).Error()})
	}

	rctx := ctx.Request().Context()
	res, err := api.svc.ImportGrades(rctx, grp.ID, rows)
	if err != nil {
		return errors.Wrap(err, "importing grades")
	}
	res.Errors = append(rowErrs, res.Errors...)
	if res.Imported > 0 {
		api.dashboard.InvalidateCache(rctx)
	}
	return ctx.JSON(http.StatusOK, res)
}

// groupMiddleware loads the group of the `:id` param. Teachers only see their own groups.
func (api *catalogApi) groupMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := api.auth.contextUser(ctx, api.users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			grp, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == school.ErrGroupNotFound || errors.Cause(err) == school.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}
			if !ctxUsr.IsAdmin() && grp.TeacherID != ctxUsr.ID {
				return errHttpNotFound
			}
			ctx.Set("object", grp)
			return next(ctx)
		}
	}
}
