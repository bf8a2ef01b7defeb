package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
)

type schoolRepository struct {
	db *schoolTables
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) embedGroup(grp school.Group) school.Group {
	grp.Subject = repo.db.subjects[grp.SubjectID]
	return grp
}

func (repo *schoolRepository) QueryPeriods(_ context.Context, activeOnly bool) ([]school.Period, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	periods := make([]school.Period, 0, len(repo.db.periods))
	for _, p := range repo.db.periods {
		if activeOnly && !p.IsActive {
			continue
		}
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		if !periods[i].StartsOn.Equal(periods[j].StartsOn) {
			return periods[i].StartsOn.After(periods[j].StartsOn)
		}
		return periods[i].ID < periods[j].ID
	})
	return periods, nil
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, ids []string, ordering []core.DBOrdering) ([]school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		if ids != nil && !contains(ids, s.ID) {
			continue
		}
		subjects = append(subjects, s)
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(subjects[i].Name, subjects[j].Name)
			case "code":
				cmp = strings.Compare(subjects[i].Code, subjects[j].Code)
			case "credits":
				cmp = subjects[i].Credits - subjects[j].Credits
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return subjects[i].ID < subjects[j].ID
	})
	return subjects, nil
}

func (repo *schoolRepository) QueryGroups(_ context.Context, filter school.GroupFilter, ordering []core.DBOrdering) ([]school.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groups := make([]school.Group, 0)
	for _, grp := range repo.db.groups {
		if filter.Match(grp) {
			groups = append(groups, repo.embedGroup(grp))
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(groups[i].Name, groups[j].Name)
			case "is_active":
				cmp = compareBools(groups[i].IsActive, groups[j].IsActive)
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

func (repo *schoolRepository) GetGroup(_ context.Context, id string) (school.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grp, ok := repo.db.groups[id]
	if !ok {
		return school.Group{}, school.ErrGroupNotFound
	}
	return repo.embedGroup(grp), nil
}

func (repo *schoolRepository) queryEnrollments(filter school.EnrollmentFilter) []school.Enrollment {
	enrollments := make([]school.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if filter.Match(enr) {
			enr.Group = repo.embedGroup(repo.db.groups[enr.GroupID])
			enrollments = append(enrollments, enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool {
		if !enrollments[i].EnrolledAt.Equal(enrollments[j].EnrolledAt) {
			return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt)
		}
		return enrollments[i].ID < enrollments[j].ID
	})
	return enrollments
}

func (repo *schoolRepository) QueryEnrollments(_ context.Context, filter school.EnrollmentFilter) ([]school.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.queryEnrollments(filter), nil
}

func (repo *schoolRepository) CountEnrollments(_ context.Context, filter school.EnrollmentFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.queryEnrollments(filter)), nil
}

func (repo *schoolRepository) QueryGrades(_ context.Context, filter school.GradeFilter) ([]school.GradeRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := make([]school.GradeRecord, 0)
	for _, grd := range repo.db.grades {
		if filter.Match(grd) {
			grades = append(grades, grd)
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		if !grades[i].GradedOn.Equal(grades[j].GradedOn) {
			return grades[i].GradedOn.Before(grades[j].GradedOn)
		}
		return grades[i].ID < grades[j].ID
	})
	return grades, nil
}

func (repo *schoolRepository) EnrollmentAverage(_ context.Context, enrollmentID string) (*float64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum, weights float64
	for _, grd := range repo.db.grades {
		if grd.EnrollmentID != enrollmentID || grd.Weight <= 0 || grd.MaxValue <= 0 {
			continue
		}
		sum += grd.Value / grd.MaxValue * 10 * grd.Weight
		weights += grd.Weight
	}
	if weights == 0 {
		return nil, nil
	}
	avg := sum / weights
	return &avg, nil
}

func (repo *schoolRepository) QuerySessions(_ context.Context, filter school.SessionFilter) ([]school.ClassSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]school.ClassSession, 0)
	for _, sess := range repo.db.sessions {
		if filter.Match(sess) {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].HeldOn.Equal(sessions[j].HeldOn) {
			return sessions[i].HeldOn.Before(sessions[j].HeldOn)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (repo *schoolRepository) QueryAttendance(_ context.Context, sessionIDs []string) ([]school.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]school.AttendanceRecord, 0)
	for _, rec := range repo.db.attendance {
		if sessionIDs != nil && !contains(sessionIDs, rec.SessionID) {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (repo *schoolRepository) CreatePeriod(_ context.Context, period school.Period) (school.Period, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	period.ID = uuid.New().String()
	repo.db.periods[period.ID] = period
	return period, nil
}

func (repo *schoolRepository) CreateSubject(_ context.Context, subject school.Subject) (school.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.subjects {
		if s.Code == subject.Code {
			return school.Subject{}, school.ErrDuplicateSubject
		}
	}
	subject.ID = uuid.New().String()
	repo.db.subjects[subject.ID] = subject
	return subject, nil
}

func (repo *schoolRepository) CreateGroup(_ context.Context, group school.Group) (school.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[group.SubjectID]; !ok {
		return school.Group{}, school.ErrSubjectNotFound
	}
	if _, ok := repo.db.periods[group.PeriodID]; !ok {
		return school.Group{}, school.ErrPeriodNotFound
	}
	group.ID = uuid.New().String()
	group.Subject = school.Subject{}
	repo.db.groups[group.ID] = group
	return repo.embedGroup(group), nil
}

func (repo *schoolRepository) CreateEnrollment(_ context.Context, enrollment school.Enrollment) (school.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	grp, ok := repo.db.groups[enrollment.GroupID]
	if !ok {
		return school.Enrollment{}, school.ErrGroupNotFound
	}
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == enrollment.StudentID && enr.GroupID == enrollment.GroupID {
			return school.Enrollment{}, school.ErrAlreadyEnrolled
		}
	}
	if enrollment.Status == "" {
		enrollment.Status = school.EnrollmentActive
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.ID = uuid.New().String()
	enrollment.Group = school.Group{}
	repo.db.enrollments[enrollment.ID] = enrollment

	enrollment.Group = repo.embedGroup(grp)
	return enrollment, nil
}

func (repo *schoolRepository) CreateGrades(_ context.Context, grades []school.GradeRecord) ([]school.GradeRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, grd := range grades {
		if _, ok := repo.db.enrollments[grd.EnrollmentID]; !ok {
			return nil, school.ErrNotFound
		}
	}
	created := make([]school.GradeRecord, 0, len(grades))
	for _, grd := range grades {
		grd.ID = uuid.New().String()
		repo.db.grades[grd.ID] = grd
		created = append(created, grd)
	}
	return created, nil
}

func (repo *schoolRepository) CreateSession(_ context.Context, session school.ClassSession) (school.ClassSession, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[session.GroupID]; !ok {
		return school.ClassSession{}, school.ErrGroupNotFound
	}
	session.ID = uuid.New().String()
	repo.db.sessions[session.ID] = session
	return session, nil
}

// RecordAttendance upserts the records on (session, student).
func (repo *schoolRepository) RecordAttendance(_ context.Context, records []school.AttendanceRecord) ([]school.AttendanceRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, rec := range records {
		if _, ok := repo.db.sessions[rec.SessionID]; !ok {
			return nil, school.ErrNotFound
		}
	}
	saved := make([]school.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		rec.ID = ""
		for id, existing := range repo.db.attendance {
			if existing.SessionID == rec.SessionID && existing.StudentID == rec.StudentID {
				rec.ID = id
				break
			}
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		repo.db.attendance[rec.ID] = rec
		saved = append(saved, rec)
	}
	return saved, nil
}

func contains(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}
