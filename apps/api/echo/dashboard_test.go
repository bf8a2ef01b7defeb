package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core/stats"
	emailsvc "github.com/trezcool/escolar/services/email"
)

func Test_dashboardApi_myGrades(t *testing.T) {
	e := setup(t)

	rec := e.do(newRequest(http.MethodGet, "/v1/dashboard/me/grades", e.token(t, e.ann)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sum stats.StudentSummary
	decode(t, rec, &sum)
	assert.Len(t, sum.Subjects, 2)
	assert.Equal(t, 6.5, sum.OverallAverage)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
	assert.Len(t, sum.Bar, 2)

	e.run(t, []httpTest{
		{name: "auth required", path: "/v1/dashboard/me/grades", wantCode: http.StatusUnauthorized, wantData: marshal(t, errMissingToken)},
		{
			name: "deactivated", path: "/v1/dashboard/me/grades", token: e.token(t, e.gone),
			wantCode: http.StatusForbidden, wantData: marshal(t, httpErr{Error: "account deactivated"}),
		},
		{name: "merged", path: "/v1/dashboard/me/grades?merged=true", token: e.token(t, e.ben)},
	})
}

func Test_dashboardApi_studentGrades(t *testing.T) {
	e := setup(t)
	path := func(id string) string { return "/v1/dashboard/students/" + id + "/grades" }

	e.run(t, []httpTest{
		{name: "self", path: path(e.ann.ID), token: e.token(t, e.ann)},
		{name: "another student", path: path(e.ben.ID), token: e.token(t, e.ann), wantCode: http.StatusNotFound},
		{name: "own student", path: path(e.ann.ID), token: e.token(t, e.tess)},
		{name: "not a student of the teacher", path: path(e.ben.ID), token: e.token(t, e.tess), wantCode: http.StatusNotFound},
		{name: "other teacher", path: path(e.ben.ID), token: e.token(t, e.theo)},
		{name: "admin", path: path(e.ben.ID), token: e.token(t, e.admin)},
	})

	rec := e.do(newRequest(http.MethodGet, path(e.ben.ID)+"/export", e.token(t, e.theo)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="grades-ben.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.NotZero(t, rec.Body.Len())
}

func Test_dashboardApi_metrics(t *testing.T) {
	e := setup(t)

	e.run(t, []httpTest{
		{
			name: "staff required", path: "/v1/dashboard/metrics", token: e.token(t, e.ann),
			wantCode: http.StatusForbidden, wantData: marshal(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid interval", path: "/v1/dashboard/metrics?interval=year", token: e.token(t, e.admin),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"interval": "must be one of: week, month"}`),
		},
	})

	t.Run("admin", func(t *testing.T) {
		rec := e.do(newRequest(http.MethodGet, "/v1/dashboard/metrics?interval=month", e.token(t, e.admin)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var m stats.InstitutionMetrics
		decode(t, rec, &m)
		assert.Equal(t, stats.Counts{Students: 2, Teachers: 2, ActiveGroups: 2}, m.Counts)
		assert.Equal(t, stats.Interval("month"), m.Interval)
		require.Len(t, m.PopularSubjects, 2)
		assert.Equal(t, "Physics", m.PopularSubjects[0].Name)
		assert.Equal(t, 2, m.PopularSubjects[0].Students)

		var total int
		for _, b := range m.GradeDistribution {
			total += b.Count
		}
		assert.Equal(t, 3, total)

		for _, att := range m.Attendance {
			if att.GroupID == e.physGrp.ID {
				assert.Equal(t, 50.0, att.Percentage)
			}
		}
	})

	t.Run("teacher is scoped to their groups", func(t *testing.T) {
		rec := e.do(newRequest(http.MethodGet, "/v1/dashboard/metrics", e.token(t, e.tess)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var m stats.InstitutionMetrics
		decode(t, rec, &m)
		assert.Equal(t, e.tess.ID, m.Filter.TeacherID)
		assert.Equal(t, stats.Counts{Students: 1, Teachers: 1, ActiveGroups: 1}, m.Counts)
		require.Len(t, m.PopularSubjects, 1)
		assert.Equal(t, "Mathematics", m.PopularSubjects[0].Name)
	})

	t.Run("export", func(t *testing.T) {
		rec := e.do(newRequest(http.MethodGet, "/v1/dashboard/metrics/export", e.token(t, e.theo)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="metrics-`)
	})
}

func Test_dashboardApi_admin(t *testing.T) {
	e := setup(t)
	adminToken := e.token(t, e.admin)

	e.run(t, []httpTest{
		{name: "admin required", method: http.MethodPost, path: "/v1/dashboard/reports", token: e.token(t, e.tess), wantCode: http.StatusForbidden},
		{
			name: "snapshots not configured", path: "/v1/dashboard/snapshots", token: adminToken,
			wantCode: http.StatusNotImplemented, wantData: marshal(t, httpErr{Error: "metrics snapshots are not configured"}),
		},
		{
			name: "take snapshot not configured", method: http.MethodPost, path: "/v1/dashboard/snapshots", token: adminToken,
			wantCode: http.StatusNotImplemented,
		},
		{
			name: "send reports", method: http.MethodPost, path: "/v1/dashboard/reports", token: adminToken,
			wantCode: http.StatusAccepted, wantData: marshal(t, ReportsResponse{Sent: 2}),
		},
	})

	require.Len(t, emailsvc.SentMessages, 2)
	for _, msg := range emailsvc.SentMessages {
		assert.True(t, msg.HasAttachments())
	}
}
