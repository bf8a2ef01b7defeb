package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
	dummydb "github.com/trezcool/escolar/storage/database/dummy"
	testutil "github.com/trezcool/escolar/tests"
)

type fixture struct {
	svc              *school.Service
	repo             school.Repository
	ann, ben, carl   user.User
	mathGrp, physGrp school.Group
	annMath          school.Enrollment
}

func newFixture(t *testing.T) *fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := core.NewTestConfig()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	usrRepo := dummydb.NewUserRepository(db)
	f := &fixture{repo: dummydb.NewSchoolRepository(db)}
	f.svc = school.NewService(f.repo, user.NewService(conf, usrRepo, nil), validate, translator)

	students := []string{user.RoleStudent}
	teacher := testutil.CreateUser(t, usrRepo, "Tess", "tess", "tess@test.io", "", []string{user.RoleTeacher}, true)
	f.ann = testutil.CreateUser(t, usrRepo, "Ann", "ann", "ann@test.io", "", students, true)
	f.ben = testutil.CreateUser(t, usrRepo, "Ben", "ben", "ben@test.io", "", students, true)
	f.carl = testutil.CreateUser(t, usrRepo, "Carl", "carl", "carl@test.io", "", students, true)
	gone := testutil.CreateUser(t, usrRepo, "Gone", "gone", "gone@test.io", "", students, false)

	s := testutil.School{T: t, Repo: f.repo}
	period := s.Period("2021 S1", true)
	s.Period("2020 S2", false)
	math := s.Subject("Mathematics", "MAT", 4)
	phys := s.Subject("Physics", "PHY", 3)
	f.mathGrp = s.Group("Math A", math, period, teacher.ID, true)
	f.physGrp = s.Group("Physics A", phys, period, "", false)

	f.annMath = s.Enroll(f.ann.ID, f.mathGrp, school.EnrollmentActive)
	s.Enroll(f.ben.ID, f.mathGrp, school.EnrollmentActive)
	s.Enroll(gone.ID, f.mathGrp, school.EnrollmentActive)
	s.Enroll(f.carl.ID, f.mathGrp, school.EnrollmentDropped)
	s.Enroll(f.carl.ID, f.physGrp, school.EnrollmentActive)
	return f
}

func TestService_Catalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	periods, err := f.svc.Periods(ctx, true)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2021 S1", periods[0].Name)

	subjects, err := f.svc.Subjects(ctx, []core.DBOrdering{{Field: "code", Ascending: false}, {Field: "password"}})
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "PHY", subjects[0].Code)

	groups, err := f.svc.Groups(ctx, school.GroupFilter{ActiveOnly: true}, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Mathematics", groups[0].Subject.Name)

	_, err = f.svc.GetGroup(ctx, "nope")
	assert.ErrorIs(t, err, school.ErrGroupNotFound)
}

func TestService_GroupStudents(t *testing.T) {
	f := newFixture(t)

	students, err := f.svc.GroupStudents(context.Background(), f.mathGrp.ID)
	require.NoError(t, err)
	unames := make([]string, 0, len(students))
	for _, s := range students {
		unames = append(unames, s.Username)
	}
	assert.Equal(t, []string{"ann", "ben"}, unames)
}

func TestService_ImportGrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	on := testutil.Date(2021, time.January, 4)

	rows := []school.GradeRow{
		{Row: 2, StudentUsername: " ANN ", Value: 15, MaxValue: 20, Type: "Exam", GradedOn: on, Comment: " good "},
		{Row: 3, StudentUsername: "zed", Value: 5, MaxValue: 10, Weight: 1, Type: "quiz", GradedOn: on},
		{Row: 4, StudentUsername: "ben", Value: 5, MaxValue: 10, Weight: 1, Type: "essay", GradedOn: on},
		{Row: 5, StudentUsername: "ben", Value: 12, MaxValue: 10, Weight: 1, Type: "quiz", GradedOn: on},
		{Row: 6, StudentUsername: "carl", Value: 5, MaxValue: 10, Weight: 1, Type: "quiz", GradedOn: on},
		{Row: 7, StudentUsername: "ben", Value: 8, MaxValue: 10, Weight: 2, Type: "quiz", GradedOn: on},
		{Row: 8, StudentUsername: "", Value: 8, MaxValue: 10, Weight: 2, Type: "quiz"},
	}

	res, err := f.svc.ImportGrades(ctx, f.mathGrp.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	type rowField struct {
		row   int
		field string
	}
	got := make([]rowField, 0, len(res.Errors))
	for _, e := range res.Errors {
		got = append(got, rowField{e.Row, e.Field})
	}
	assert.ElementsMatch(t, []rowField{
		{3, "student_username"},
		{4, "type"},
		{5, "value"},
		{6, "student_username"},
		{8, "student_username"},
		{8, "graded_on"},
	}, got)

	grades, err := f.repo.QueryGrades(ctx, school.GradeFilter{EnrollmentIDs: []string{f.annMath.ID}})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, school.GradeExam, grades[0].Type)
	assert.Equal(t, float64(1), grades[0].Weight)
	assert.Equal(t, "good", grades[0].Comment)
}

func TestService_ImportGrades_errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportGrades(ctx, "nope", nil)
	assert.ErrorIs(t, err, school.ErrGroupNotFound)

	res, err := f.svc.ImportGrades(ctx, f.mathGrp.ID, []school.GradeRow{
		{Row: 2, StudentUsername: "ann", Value: 1, MaxValue: 10, Type: "quiz"},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, school.RowError{Row: 2, Field: "graded_on", Error: "this field is required"}, res.Errors[0])
}
