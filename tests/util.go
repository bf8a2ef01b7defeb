package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// School creates school records, failing the test on error.
type School struct {
	T    *testing.T
	Repo school.Repository
}

func (s School) fail(what string, err error) {
	s.T.Helper()
	s.T.Fatalf("creating %s failed: %v", what, err)
}

func (s School) Period(name string, active bool) school.Period {
	s.T.Helper()
	p, err := s.Repo.CreatePeriod(context.Background(), school.Period{
		Name:     name,
		StartsOn: Date(2021, time.January, 1),
		EndsOn:   Date(2021, time.June, 30),
		IsActive: active,
	})
	if err != nil {
		s.fail("period", err)
	}
	return p
}

func (s School) Subject(name, code string, credits int) school.Subject {
	s.T.Helper()
	subj, err := s.Repo.CreateSubject(context.Background(), school.Subject{Name: name, Code: code, Credits: credits})
	if err != nil {
		s.fail("subject", err)
	}
	return subj
}

func (s School) Group(name string, subj school.Subject, period school.Period, teacherID string, active bool) school.Group {
	s.T.Helper()
	grp, err := s.Repo.CreateGroup(context.Background(), school.Group{
		Name:      name,
		SubjectID: subj.ID,
		PeriodID:  period.ID,
		TeacherID: teacherID,
		IsActive:  active,
	})
	if err != nil {
		s.fail("group", err)
	}
	return grp
}

func (s School) Enroll(studentID string, grp school.Group, status school.EnrollmentStatus) school.Enrollment {
	s.T.Helper()
	enr, err := s.Repo.CreateEnrollment(context.Background(), school.Enrollment{StudentID: studentID, GroupID: grp.ID, Status: status})
	if err != nil {
		s.fail("enrollment", err)
	}
	return enr
}

func (s School) Grade(enr school.Enrollment, value, max, weight float64, gt school.GradeType, on time.Time) school.GradeRecord {
	s.T.Helper()
	grades, err := s.Repo.CreateGrades(context.Background(), []school.GradeRecord{{
		EnrollmentID: enr.ID,
		Value:        value,
		MaxValue:     max,
		Weight:       weight,
		Type:         gt,
		GradedOn:     on,
	}})
	if err != nil {
		s.fail("grade", err)
	}
	return grades[0]
}

func (s School) Session(grp school.Group, on time.Time) school.ClassSession {
	s.T.Helper()
	sess, err := s.Repo.CreateSession(context.Background(), school.ClassSession{GroupID: grp.ID, HeldOn: on, Topic: "topic"})
	if err != nil {
		s.fail("session", err)
	}
	return sess
}

func (s School) Attendance(sess school.ClassSession, studentID string, status school.AttendanceStatus) {
	s.T.Helper()
	if _, err := s.Repo.RecordAttendance(context.Background(), []school.AttendanceRecord{
		{SessionID: sess.ID, StudentID: studentID, Status: status},
	}); err != nil {
		s.fail("attendance", err)
	}
}

// Logger records logged messages.
type Logger struct {
	mu      sync.Mutex
	Entries []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s", level, msg))
}

func (l *Logger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Entries)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }
