package school

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/user"
)

var (
	gradeTypeTag  = "gradetype"
	gradeTypeText = "invalid grade type"

	errUnknownStudent = "unknown student"
	errNotEnrolled    = "student is not actively enrolled in this group"
)

// InitValidators registers the school validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTypeTag, func(fl validator.FieldLevel) bool {
		return GradeType(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, gradeTypeTag, gradeTypeText)
}

type (
	// GradeRow is one grade line of an imported sheet.
	GradeRow struct {
		Row             int       `json:"row"`
		StudentUsername string    `json:"student_username" validate:"required"`
		Value           float64   `json:"value" validate:"gte=0,ltefield=MaxValue"`
		MaxValue        float64   `json:"max_value" validate:"gt=0"`
		Weight          float64   `json:"weight" validate:"gt=0"`
		Type            string    `json:"type" validate:"required,gradetype"`
		GradedOn        time.Time `json:"graded_on" validate:"required"`
		Comment         string    `json:"comment"`
	}

	RowError struct {
		Row   int    `json:"row"`
		Field string `json:"field,omitempty"`
		Error string `json:"error"`
	}

	ImportResult struct {
		Imported int        `json:"imported"`
		Errors   []RowError `json:"errors"`
	}
)

type Service struct {
	repo       Repository
	users      user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func NewService(repo Repository, users user.Service, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		validate:   validate,
		translator: translator,
	}
}

func (svc *Service) Periods(ctx context.Context, activeOnly bool) ([]Period, error) {
	return svc.repo.QueryPeriods(ctx, activeOnly)
}

func (svc *Service) Subjects(ctx context.Context, ordering []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, nil, core.FilterOrderings(ordering, "name", "code", "credits"))
}

func (svc *Service) Groups(ctx context.Context, filter GroupFilter, ordering []core.DBOrdering) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter, core.FilterOrderings(ordering, "name", "is_active"))
}

func (svc *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

// GroupStudents returns the active students actively enrolled in the group, by username.
func (svc *Service) GroupStudents(ctx context.Context, groupID string) ([]user.User, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{GroupIDs: []string{groupID}, Status: EnrollmentActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrollments) == 0 {
		return []user.User{}, nil
	}
	ids := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.StudentID)
	}
	active := true
	return svc.users.Query(
		ctx,
		&user.QueryFilter{IDs: ids, IsActive: &active},
		[]core.DBOrdering{{Field: "username", Ascending: true}},
	)
}

// ImportGrades validates `rows` and records the valid ones against the students' active enrollments in the group.
// Invalid rows are reported back and skipped.
func (svc *Service) ImportGrades(ctx context.Context, groupID string, rows []GradeRow) (ImportResult, error) {
	res := ImportResult{Errors: []RowError{}}

	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return res, err
	}

	valid := make([]GradeRow, 0, len(rows))
	unames := make([]string, 0, len(rows))
	for _, row := range rows {
		row.StudentUsername = core.CleanString(row.StudentUsername, true /* lower */)
		row.Type = core.CleanString(row.Type, true /* lower */)
		if row.Weight == 0 {
			row.Weight = 1
		}
		if err := svc.validate.Struct(row); err != nil {
			res.Errors = append(res.Errors, svc.rowErrors(row.Row, err)...)
			continue
		}
		valid = append(valid, row)
		unames = append(unames, row.StudentUsername)
	}
	if len(valid) == 0 {
		return res, nil
	}

	students, err := svc.users.Query(ctx, &user.QueryFilter{Usernames: core.StringSet(unames...), Roles: user.StudentRoles}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying students")
	}
	studentIDs := make(map[string]string, len(students)) // {username: id}
	for _, s := range students {
		studentIDs[s.Username] = s.ID
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{GroupIDs: []string{groupID}, Status: EnrollmentActive})
	if err != nil {
		return res, errors.Wrap(err, "querying enrollments")
	}
	enrollmentIDs := make(map[string]string, len(enrollments)) // {studentID: enrollmentID}
	for _, enr := range enrollments {
		enrollmentIDs[enr.StudentID] = enr.ID
	}

	grades := make([]GradeRecord, 0, len(valid))
	for _, row := range valid {
		studentID, ok := studentIDs[row.StudentUsername]
		if !ok {
			res.Errors = append(res.Errors, RowError{Row: row.Row, Field: "student_username", Error: errUnknownStudent})
			continue
		}
		enrID, ok := enrollmentIDs[studentID]
		if !ok {
			res.Errors = append(res.Errors, RowError{Row: row.Row, Field: "student_username", Error: errNotEnrolled})
			continue
		}
		grades = append(grades, GradeRecord{
			EnrollmentID: enrID,
			Value:        row.Value,
			MaxValue:     row.MaxValue,
			Weight:       row.Weight,
			Type:         GradeType(row.Type),
			GradedOn:     row.GradedOn,
			Comment:      core.CleanString(row.Comment),
		})
	}
	if len(grades) == 0 {
		return res, nil
	}

	created, err := svc.repo.CreateGrades(ctx, grades)
	if err != nil {
		return res, errors.Wrap(err, "creating grades")
	}
	res.Imported = len(created)
	return res, nil
}

func (svc *Service) rowErrors(row int, err error) []RowError {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []RowError{{Row: row, Error: err.Error()}}
	}
	rowErrs := make([]RowError, 0, len(vErrs))
	for _, vErr := range vErrs {
		rowErrs = append(rowErrs, RowError{Row: row, Field: vErr.Field(), Error: vErr.Translate(svc.translator)})
	}
	return rowErrs
}

func (r RowError) String() string {
	return fmt.Sprintf("row %d: %s %s", r.Row, r.Field, r.Error)
}
