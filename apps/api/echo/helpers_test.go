package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
	emailsvc "github.com/trezcool/escolar/services/email"
	exportsvc "github.com/trezcool/escolar/services/export"
	dummydb "github.com/trezcool/escolar/storage/database/dummy"
	testutil "github.com/trezcool/escolar/tests"
)

const testPwd = "s3cret-Pa55word"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

// env is a server backed by in-memory repositories, with a small school.
type env struct {
	app        Server
	auth       *Auth
	conf       *core.Config
	logger     *testutil.Logger
	usrRepo    user.Repository
	schoolRepo school.Repository

	admin, principal, tess, theo, ann, ben, gone user.User
	math, phys                                   school.Subject
	mathGrp, physGrp                             school.Group
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	e := &env{
		conf:       core.NewTestConfig(),
		logger:     new(testutil.Logger),
		usrRepo:    dummydb.NewUserRepository(db),
		schoolRepo: dummydb.NewSchoolRepository(db),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	dashboard.InitValidators(validate, translator)
	core.ParseEmailTemplates(e.conf, e.logger)
	emailsvc.ClearSentMessages()

	mailer := emailsvc.NewConsoleServiceMock(e.conf, e.logger)
	exporter := exportsvc.NewXLSXWriter()
	usrSvc := user.NewService(e.conf, e.usrRepo, mailer)

	e.auth = NewAuth(e.conf)
	e.app = NewServer(&Options{
		Conf:       e.conf,
		Logger:     e.logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		SchoolSvc:  school.NewService(e.schoolRepo, usrSvc, validate, translator),
		DashboardSvc: dashboard.NewService(e.conf, dashboard.Deps{
			Repo:    e.schoolRepo,
			Users:   usrSvc,
			Logger:  e.logger,
			Mailer:  mailer,
			Reports: exporter,
		}),
		Exporter:    exporter,
		ParseGrades: exportsvc.ParseGrades,
	})

	e.seed(t)
	return e
}

func (e *env) seed(t *testing.T) {
	create := func(name, uname string, active bool, roles ...string) user.User {
		return testutil.CreateUser(t, e.usrRepo, name, uname, uname+"@test.io", testPwd, roles, active)
	}
	e.admin = create("Admin", "admin", true, user.RoleAdmin)
	e.principal = create("Principal", "principal", true, user.RoleAdminPrincipal)
	e.tess = create("Tess", "tess", true, user.RoleTeacher)
	e.theo = create("Theo", "theo", true, user.RoleTeacher)
	e.ann = create("Ann", "ann", true, user.RoleStudent)
	e.ben = create("Ben", "ben", true, user.RoleStudent)
	e.gone = create("Gone", "gone", false, user.RoleStudent)

	s := testutil.School{T: t, Repo: e.schoolRepo}
	period := s.Period("2021 S1", true)
	e.math = s.Subject("Mathematics", "MAT", 4)
	e.phys = s.Subject("Physics", "PHY", 3)
	e.mathGrp = s.Group("Math A", e.math, period, e.tess.ID, true)
	e.physGrp = s.Group("Physics A", e.phys, period, e.theo.ID, true)

	annMath := s.Enroll(e.ann.ID, e.mathGrp, school.EnrollmentActive)
	annPhys := s.Enroll(e.ann.ID, e.physGrp, school.EnrollmentActive)
	benPhys := s.Enroll(e.ben.ID, e.physGrp, school.EnrollmentActive)

	s.Grade(annMath, 16, 20, 1, school.GradeExam, testutil.Date(2021, time.January, 4))
	s.Grade(annPhys, 5, 10, 1, school.GradeQuiz, testutil.Date(2021, time.January, 5))
	s.Grade(benPhys, 9, 10, 1, school.GradeQuiz, testutil.Date(2021, time.January, 5))

	sess := s.Session(e.physGrp, testutil.Date(2021, time.January, 5))
	s.Attendance(sess, e.ann.ID, school.AttendancePresent)
	s.Attendance(sess, e.ben.ID, school.AttendanceAbsent)
}

func (e *env) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := e.auth.GenerateToken(e.auth.UserClaims(usr))
	require.NoError(t, err)
	return token
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path, token string, body ...[]byte) *http.Request {
	var buf bytes.Buffer
	if len(body) > 0 {
		buf.Write(body[0])
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marshal(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (e *env) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(newRequest(tt.method, tt.path, tt.token, tt.body))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				assert.JSONEq(t, string(tt.wantData), rec.Body.String())
			}
		})
	}
}
