package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/storage/database"
)

type (
	periodRow struct {
		ID       string    `boil:"id"`
		Name     string    `boil:"name"`
		StartsOn time.Time `boil:"starts_on"`
		EndsOn   time.Time `boil:"ends_on"`
		IsActive bool      `boil:"is_active"`
	}

	subjectRow struct {
		ID      string `boil:"id"`
		Name    string `boil:"name"`
		Code    string `boil:"code"`
		Credits int    `boil:"credits"`
	}

	groupRow struct {
		ID             string      `boil:"id"`
		Name           string      `boil:"name"`
		SubjectID      string      `boil:"subject_id"`
		PeriodID       string      `boil:"period_id"`
		TeacherID      null.String `boil:"teacher_id"`
		IsActive       bool        `boil:"is_active"`
		SubjectName    string      `boil:"subject_name"`
		SubjectCode    string      `boil:"subject_code"`
		SubjectCredits int         `boil:"subject_credits"`
	}

	gradeRow struct {
		ID           string      `boil:"id"`
		EnrollmentID string      `boil:"enrollment_id"`
		Value        float64     `boil:"value"`
		MaxValue     float64     `boil:"max_value"`
		Weight       float64     `boil:"weight"`
		Type         string      `boil:"grade_type"`
		GradedOn     time.Time   `boil:"graded_on"`
		Comment      null.String `boil:"comment"`
	}

	sessionRow struct {
		ID      string      `boil:"id"`
		GroupID string      `boil:"group_id"`
		HeldOn  time.Time   `boil:"held_on"`
		Topic   null.String `boil:"topic"`
	}

	attendanceRow struct {
		ID        string `boil:"id"`
		SessionID string `boil:"session_id"`
		StudentID string `boil:"student_id"`
		Status    string `boil:"status"`
	}
)

var (
	groupColumns = []string{
		"g.id", "g.name", "g.subject_id", "g.period_id", "g.teacher_id", "g.is_active",
		"s.name AS subject_name", "s.code AS subject_code", "s.credits AS subject_credits",
	}
	enrollmentColumns = []string{
		"e.id", "e.student_id", "e.group_id", "e.status", "e.enrolled_at",
		"g.name AS group_name", "g.subject_id AS group_subject_id", "g.period_id AS group_period_id",
		"g.teacher_id AS group_teacher_id", "g.is_active AS group_is_active",
		"s.name AS subject_name", "s.code AS subject_code", "s.credits AS subject_credits",
	}
	gradeColumns = []string{"id", "enrollment_id", "value", "max_value", "weight", "grade_type", "graded_on", "comment"}
)

func (r groupRow) unboil() school.Group {
	return school.Group{
		ID:        r.ID,
		Name:      r.Name,
		SubjectID: r.SubjectID,
		PeriodID:  r.PeriodID,
		TeacherID: r.TeacherID.String,
		IsActive:  r.IsActive,
		Subject:   school.Subject{ID: r.SubjectID, Name: r.SubjectName, Code: r.SubjectCode, Credits: r.SubjectCredits},
	}
}

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) QueryPeriods(ctx context.Context, activeOnly bool) ([]school.Period, error) {
	mods := []qm.QueryMod{
		qm.Select("id", "name", "starts_on", "ends_on", "is_active"),
		qm.From("periods"),
		qm.OrderBy("starts_on DESC, id"),
	}
	if activeOnly {
		mods = append(mods, qm.Where("is_active = ?", true))
	}

	var rows []periodRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying periods")
	}
	periods := make([]school.Period, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, school.Period(r))
	}
	return periods, nil
}

func (repo schoolRepository) QuerySubjects(ctx context.Context, ids []string, ordering []core.DBOrdering) ([]school.Subject, error) {
	mods := []qm.QueryMod{
		qm.Select("id", "name", "code", "credits"),
		qm.From("subjects"),
		orderBy(ordering, "", "name, id"),
	}
	if ids != nil {
		mod, ok := whereIn("id", ids)
		if !ok {
			return []school.Subject{}, nil
		}
		mods = append(mods, mod)
	}

	var rows []subjectRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, school.Subject(r))
	}
	return subjects, nil
}

// groupMods returns the group filter mods, ok is false when no group can match.
func groupMods(filter school.GroupFilter) (mods []qm.QueryMod, ok bool) {
	if !validIDs(filter.PeriodID, filter.SubjectID, filter.GroupID, filter.TeacherID) {
		return nil, false
	}
	if filter.PeriodID != "" {
		mods = append(mods, qm.Where("g.period_id = ?", filter.PeriodID))
	}
	if filter.SubjectID != "" {
		mods = append(mods, qm.Where("g.subject_id = ?", filter.SubjectID))
	}
	if filter.GroupID != "" {
		mods = append(mods, qm.Where("g.id = ?", filter.GroupID))
	}
	if filter.TeacherID != "" {
		mods = append(mods, qm.Where("g.teacher_id = ?", filter.TeacherID))
	}
	if filter.IDs != nil {
		mod, ok := whereIn("g.id", filter.IDs)
		if !ok {
			return nil, false
		}
		mods = append(mods, mod)
	}
	if filter.ActiveOnly {
		mods = append(mods, qm.Where("g.is_active = ?", true))
	}
	return mods, true
}

func (repo schoolRepository) QueryGroups(ctx context.Context, filter school.GroupFilter, ordering []core.DBOrdering) ([]school.Group, error) {
	filterMods, ok := groupMods(filter)
	if !ok {
		return []school.Group{}, nil
	}
	mods := []qm.QueryMod{
		qm.Select(groupColumns...),
		qm.From("class_groups g"),
		qm.InnerJoin("subjects s ON s.id = g.subject_id"),
		orderBy(ordering, "g.", "g.name, g.id"),
	}
	mods = append(mods, filterMods...)

	var rows []groupRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]school.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.unboil())
	}
	return groups, nil
}

func (repo schoolRepository) GetGroup(ctx context.Context, id string) (school.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Group{}, school.ErrGroupNotFound
	}
	var row groupRow
	err := newQuery(
		qm.Select(groupColumns...),
		qm.From("class_groups g"),
		qm.InnerJoin("subjects s ON s.id = g.subject_id"),
		qm.Where("g.id = ?", id),
	).Bind(ctx, repo.exec, &row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Group{}, school.ErrGroupNotFound
		}
		return school.Group{}, errors.Wrap(err, "getting group")
	}
	return row.unboil(), nil
}

func enrollmentMods(filter school.EnrollmentFilter) (mods []qm.QueryMod, ok bool) {
	if !validIDs(filter.StudentID) {
		return nil, false
	}
	if filter.StudentID != "" {
		mods = append(mods, qm.Where("e.student_id = ?", filter.StudentID))
	}
	if filter.GroupIDs != nil {
		mod, ok := whereIn("e.group_id", filter.GroupIDs)
		if !ok {
			return nil, false
		}
		mods = append(mods, mod)
	}
	if filter.Status != "" {
		mods = append(mods, qm.Where("e.status = ?", string(filter.Status)))
	}
	return mods, true
}

func (repo schoolRepository) QueryEnrollments(ctx context.Context, filter school.EnrollmentFilter) ([]school.Enrollment, error) {
	filterMods, ok := enrollmentMods(filter)
	if !ok {
		return []school.Enrollment{}, nil
	}
	mods := []qm.QueryMod{
		qm.Select(enrollmentColumns...),
		qm.From("enrollments e"),
		qm.InnerJoin("class_groups g ON g.id = e.group_id"),
		qm.InnerJoin("subjects s ON s.id = g.subject_id"),
		qm.OrderBy("e.enrolled_at, e.id"),
	}
	mods = append(mods, filterMods...)

	var rows []struct {
		ID             string      `boil:"id"`
		StudentID      string      `boil:"student_id"`
		GroupID        string      `boil:"group_id"`
		Status         string      `boil:"status"`
		EnrolledAt     time.Time   `boil:"enrolled_at"`
		GroupName      string      `boil:"group_name"`
		SubjectID      string      `boil:"group_subject_id"`
		PeriodID       string      `boil:"group_period_id"`
		TeacherID      null.String `boil:"group_teacher_id"`
		IsActive       bool        `boil:"group_is_active"`
		SubjectName    string      `boil:"subject_name"`
		SubjectCode    string      `boil:"subject_code"`
		SubjectCredits int         `boil:"subject_credits"`
	}
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrollments := make([]school.Enrollment, 0, len(rows))
	for _, r := range rows {
		grp := groupRow{
			ID:             r.GroupID,
			Name:           r.GroupName,
			SubjectID:      r.SubjectID,
			PeriodID:       r.PeriodID,
			TeacherID:      r.TeacherID,
			IsActive:       r.IsActive,
			SubjectName:    r.SubjectName,
			SubjectCode:    r.SubjectCode,
			SubjectCredits: r.SubjectCredits,
		}
		enrollments = append(enrollments, school.Enrollment{
			ID:         r.ID,
			StudentID:  r.StudentID,
			GroupID:    r.GroupID,
			Status:     school.EnrollmentStatus(r.Status),
			EnrolledAt: r.EnrolledAt,
			Group:      grp.unboil(),
		})
	}
	return enrollments, nil
}

func (repo schoolRepository) CountEnrollments(ctx context.Context, filter school.EnrollmentFilter) (int, error) {
	filterMods, ok := enrollmentMods(filter)
	if !ok {
		return 0, nil
	}
	mods := append([]qm.QueryMod{qm.Select("COUNT(*)"), qm.From("enrollments e")}, filterMods...)

	var cnt int
	if err := newQuery(mods...).QueryRowContext(ctx, repo.exec).Scan(&cnt); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return cnt, nil
}

func (repo schoolRepository) QueryGrades(ctx context.Context, filter school.GradeFilter) ([]school.GradeRecord, error) {
	mods := []qm.QueryMod{
		qm.Select(gradeColumns...),
		qm.From("grade_records"),
		qm.OrderBy("graded_on, id"),
	}
	if filter.EnrollmentIDs != nil {
		mod, ok := whereIn("enrollment_id", filter.EnrollmentIDs)
		if !ok {
			return []school.GradeRecord{}, nil
		}
		mods = append(mods, mod)
	}
	if !filter.From.IsZero() {
		mods = append(mods, qm.Where("graded_on >= ?", filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		mods = append(mods, qm.Where("graded_on <= ?", filter.To.UTC()))
	}

	var rows []gradeRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]school.GradeRecord, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, school.GradeRecord{
			ID:           r.ID,
			EnrollmentID: r.EnrollmentID,
			Value:        r.Value,
			MaxValue:     r.MaxValue,
			Weight:       r.Weight,
			Type:         school.GradeType(r.Type),
			GradedOn:     r.GradedOn,
			Comment:      r.Comment.String,
		})
	}
	return grades, nil
}

func (repo schoolRepository) EnrollmentAverage(ctx context.Context, enrollmentID string) (*float64, error) {
	if !validIDs(enrollmentID) {
		return nil, nil
	}
	var avg null.Float64
	err := newQuery(
		qm.Select("SUM(value / max_value * 10 * weight) / NULLIF(SUM(weight), 0)"),
		qm.From("grade_records"),
		qm.Where("enrollment_id = ?", enrollmentID),
		qm.Where("weight > 0"),
		qm.Where("max_value > 0"),
	).QueryRowContext(ctx, repo.exec).Scan(&avg)
	if err != nil {
		return nil, errors.Wrap(err, "computing enrollment average")
	}
	return avg.Ptr(), nil
}

func (repo schoolRepository) QuerySessions(ctx context.Context, filter school.SessionFilter) ([]school.ClassSession, error) {
	mods := []qm.QueryMod{
		qm.Select("id", "group_id", "held_on", "topic"),
		qm.From("class_sessions"),
		qm.OrderBy("held_on, id"),
	}
	if filter.GroupIDs != nil {
		mod, ok := whereIn("group_id", filter.GroupIDs)
		if !ok {
			return []school.ClassSession{}, nil
		}
		mods = append(mods, mod)
	}
	if !filter.From.IsZero() {
		mods = append(mods, qm.Where("held_on >= ?", filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		mods = append(mods, qm.Where("held_on <= ?", filter.To.UTC()))
	}

	var rows []sessionRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]school.ClassSession, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, school.ClassSession{ID: r.ID, GroupID: r.GroupID, HeldOn: r.HeldOn, Topic: r.Topic.String})
	}
	return sessions, nil
}

func (repo schoolRepository) QueryAttendance(ctx context.Context, sessionIDs []string) ([]school.AttendanceRecord, error) {
	mods := []qm.QueryMod{
		qm.Select("id", "session_id", "student_id", "status"),
		qm.From("attendance_records"),
		qm.OrderBy("id"),
	}
	if sessionIDs != nil {
		mod, ok := whereIn("session_id", sessionIDs)
		if !ok {
			return []school.AttendanceRecord{}, nil
		}
		mods = append(mods, mod)
	}

	var rows []attendanceRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]school.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, school.AttendanceRecord{
			ID:        r.ID,
			SessionID: r.SessionID,
			StudentID: r.StudentID,
			Status:    school.AttendanceStatus(r.Status),
		})
	}
	return records, nil
}

// insert runs a single INSERT of `cols`, `vals` holding len(cols) values per row.
func (repo schoolRepository) insert(ctx context.Context, table string, cols []string, vals ...interface{}) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		strmangle.IdentQuote(dialect.LQ, dialect.RQ, table),
		strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, cols), ", "),
		strmangle.Placeholders(dialect.UseIndexPlaceholders, len(vals), 1, len(cols)),
	)
	_, err := queries.Raw(q, vals...).ExecContext(ctx, repo.exec)
	return err
}

func (repo schoolRepository) exists(ctx context.Context, table, id string) (bool, error) {
	if !validIDs(id) || id == "" {
		return false, nil
	}
	var found bool
	err := queries.Raw("SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).
		QueryRowContext(ctx, repo.exec).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

func (repo schoolRepository) CreatePeriod(ctx context.Context, period school.Period) (school.Period, error) {
	period.ID = uuid.New().String()
	err := repo.insert(ctx, "periods",
		[]string{"id", "name", "starts_on", "ends_on", "is_active"},
		period.ID, period.Name, period.StartsOn.UTC(), period.EndsOn.UTC(), period.IsActive)
	if err != nil {
		return school.Period{}, errors.Wrap(err, "inserting period")
	}
	return period, nil
}

func (repo schoolRepository) CreateSubject(ctx context.Context, subject school.Subject) (school.Subject, error) {
	subject.ID = uuid.New().String()
	err := repo.insert(ctx, "subjects",
		[]string{"id", "name", "code", "credits"},
		subject.ID, subject.Name, subject.Code, subject.Credits)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return school.Subject{}, school.ErrDuplicateSubject
		}
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return subject, nil
}

func (repo schoolRepository) CreateGroup(ctx context.Context, group school.Group) (school.Group, error) {
	found, err := repo.exists(ctx, "subjects", group.SubjectID)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "checking subject")
	}
	if !found {
		return school.Group{}, school.ErrSubjectNotFound
	}
	if found, err = repo.exists(ctx, "periods", group.PeriodID); err != nil {
		return school.Group{}, errors.Wrap(err, "checking period")
	} else if !found {
		return school.Group{}, school.ErrPeriodNotFound
	}

	group.ID = uuid.New().String()
	err = repo.insert(ctx, "class_groups",
		[]string{"id", "name", "subject_id", "period_id", "teacher_id", "is_active"},
		group.ID, group.Name, group.SubjectID, group.PeriodID,
		null.NewString(group.TeacherID, group.TeacherID != ""), group.IsActive)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "inserting group")
	}
	return repo.GetGroup(ctx, group.ID)
}

func (repo schoolRepository) CreateEnrollment(ctx context.Context, enrollment school.Enrollment) (school.Enrollment, error) {
	grp, err := repo.GetGroup(ctx, enrollment.GroupID)
	if err != nil {
		return school.Enrollment{}, err
	}
	if enrollment.Status == "" {
		enrollment.Status = school.EnrollmentActive
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.ID = uuid.New().String()

	err = repo.insert(ctx, "enrollments",
		[]string{"id", "student_id", "group_id", "status", "enrolled_at"},
		enrollment.ID, enrollment.StudentID, enrollment.GroupID, string(enrollment.Status), enrollment.EnrolledAt.UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return school.Enrollment{}, school.ErrAlreadyEnrolled
		}
		return school.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	enrollment.Group = grp
	return enrollment, nil
}

func (repo schoolRepository) CreateGrades(ctx context.Context, grades []school.GradeRecord) ([]school.GradeRecord, error) {
	if len(grades) == 0 {
		return []school.GradeRecord{}, nil
	}
	vals := make([]interface{}, 0, len(grades)*len(gradeColumns))
	created := make([]school.GradeRecord, 0, len(grades))
	for _, grd := range grades {
		grd.ID = uuid.New().String()
		vals = append(vals,
			grd.ID, grd.EnrollmentID, grd.Value, grd.MaxValue, grd.Weight, string(grd.Type), grd.GradedOn.UTC(),
			null.NewString(grd.Comment, grd.Comment != ""))
		created = append(created, grd)
	}
	if err := repo.insert(ctx, "grade_records", gradeColumns, vals...); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, school.ErrNotFound
		}
		return nil, errors.Wrap(err, "inserting grades")
	}
	return created, nil
}

func (repo schoolRepository) CreateSession(ctx context.Context, session school.ClassSession) (school.ClassSession, error) {
	session.ID = uuid.New().String()
	err := repo.insert(ctx, "class_sessions",
		[]string{"id", "group_id", "held_on", "topic"},
		session.ID, session.GroupID, session.HeldOn.UTC(), null.NewString(session.Topic, session.Topic != ""))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return school.ClassSession{}, school.ErrGroupNotFound
		}
		return school.ClassSession{}, errors.Wrap(err, "inserting session")
	}
	return session, nil
}

// RecordAttendance upserts the records on (session, student).
func (repo schoolRepository) RecordAttendance(ctx context.Context, records []school.AttendanceRecord) ([]school.AttendanceRecord, error) {
	saved := make([]school.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		var id string
		err := queries.Raw(
			`INSERT INTO attendance_records (id, session_id, student_id, status) VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id, student_id) DO UPDATE SET status = EXCLUDED.status
			RETURNING id`,
			uuid.New().String(), rec.SessionID, rec.StudentID, string(rec.Status),
		).QueryRowContext(ctx, repo.exec).Scan(&id)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return nil, school.ErrNotFound
			}
			return nil, errors.Wrap(err, "recording attendance")
		}
		rec.ID = id
		saved = append(saved, rec)
	}
	return saved, nil
}
