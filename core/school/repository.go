package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
)

var (
	// errors
	ErrNotFound         = errors.New("not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrPeriodNotFound   = errors.New("period not found")
	ErrAlreadyEnrolled  = errors.New("student already enrolled in this group")
	ErrDuplicateSubject = errors.New("a subject with this code already exists")
)

// Repository is the query layer over the school tables.
// Lookups taking an ID list return an empty result for an empty (non-nil) list,
// a nil list means "no restriction".
type Repository interface {
	QueryPeriods(ctx context.Context, activeOnly bool) ([]Period, error)
	QuerySubjects(ctx context.Context, ids []string, ordering []core.DBOrdering) ([]Subject, error)
	// QueryGroups embeds each group's Subject.
	QueryGroups(ctx context.Context, filter GroupFilter, ordering []core.DBOrdering) ([]Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	// QueryEnrollments embeds each enrollment's Group and its Subject.
	QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	CountEnrollments(ctx context.Context, filter EnrollmentFilter) (int, error)
	// QueryGrades returns grade records ordered by date.
	QueryGrades(ctx context.Context, filter GradeFilter) ([]GradeRecord, error)
	// EnrollmentAverage returns the weighted 0-10 average of an enrollment's grades, nil when it has none.
	EnrollmentAverage(ctx context.Context, enrollmentID string) (*float64, error)
	// QuerySessions returns class sessions ordered by date.
	QuerySessions(ctx context.Context, filter SessionFilter) ([]ClassSession, error)
	QueryAttendance(ctx context.Context, sessionIDs []string) ([]AttendanceRecord, error)

	CreatePeriod(ctx context.Context, period Period) (Period, error)
	CreateSubject(ctx context.Context, subject Subject) (Subject, error)
	CreateGroup(ctx context.Context, group Group) (Group, error)
	CreateEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error)
	CreateGrades(ctx context.Context, grades []GradeRecord) ([]GradeRecord, error)
	CreateSession(ctx context.Context, session ClassSession) (ClassSession, error)
	RecordAttendance(ctx context.Context, records []AttendanceRecord) ([]AttendanceRecord, error)
}
