package school

import (
	"time"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

type GradeType string

const (
	GradeExam          GradeType = "exam"
	GradeQuiz          GradeType = "quiz"
	GradeHomework      GradeType = "homework"
	GradeProject       GradeType = "project"
	GradeParticipation GradeType = "participation"
)

// GradeTypes lists the evaluation types, in display order.
var GradeTypes = []GradeType{GradeExam, GradeQuiz, GradeHomework, GradeProject, GradeParticipation}

func (gt GradeType) IsValid() bool {
	for _, t := range GradeTypes {
		if gt == t {
			return true
		}
	}
	return false
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// Attended reports whether the student was in class.
func (as AttendanceStatus) Attended() bool {
	return as == AttendancePresent || as == AttendanceLate
}

func (as AttendanceStatus) IsValid() bool {
	switch as {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

type (
	Period struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		StartsOn time.Time `json:"starts_on"`
		EndsOn   time.Time `json:"ends_on"`
		IsActive bool      `json:"is_active"`
	}

	Subject struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Code    string `json:"code"`
		Credits int    `json:"credits"`
	}

	Group struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		SubjectID string  `json:"subject_id"`
		PeriodID  string  `json:"period_id"`
		TeacherID string  `json:"teacher_id,omitempty"`
		IsActive  bool    `json:"is_active"`
		Subject   Subject `json:"subject"` // embedded relation
	}

	Enrollment struct {
		ID         string           `json:"id"`
		StudentID  string           `json:"student_id"`
		GroupID    string           `json:"group_id"`
		Status     EnrollmentStatus `json:"status"`
		EnrolledAt time.Time        `json:"enrolled_at"`
		Group      Group            `json:"group"` // embedded relation (with its Subject)
	}

	GradeRecord struct {
		ID           string    `json:"id"`
		EnrollmentID string    `json:"enrollment_id"`
		Value        float64   `json:"value"`
		MaxValue     float64   `json:"max_value"`
		Weight       float64   `json:"weight"`
		Type         GradeType `json:"type"`
		GradedOn     time.Time `json:"graded_on"`
		Comment      string    `json:"comment,omitempty"`
	}

	ClassSession struct {
		ID      string    `json:"id"`
		GroupID string    `json:"group_id"`
		HeldOn  time.Time `json:"held_on"`
		Topic   string    `json:"topic,omitempty"`
	}

	AttendanceRecord struct {
		ID        string           `json:"id"`
		SessionID string           `json:"session_id"`
		StudentID string           `json:"student_id"`
		Status    AttendanceStatus `json:"status"`
	}
)

func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentActive
}

// Normalized returns the grade on a 0-10 scale.
func (g GradeRecord) Normalized() float64 {
	if g.MaxValue <= 0 {
		return 0
	}
	return g.Value / g.MaxValue * 10
}

// Filter narrows institution-wide lookups. Empty fields are ignored.
type Filter struct {
	PeriodID  string `query:"period" json:"period,omitempty"`
	SubjectID string `query:"subject" json:"subject,omitempty"`
	GroupID   string `query:"group" json:"group,omitempty"`
	TeacherID string `query:"-" json:"teacher,omitempty"`
}

func (f Filter) IsEmpty() bool {
	return f.PeriodID == "" && f.SubjectID == "" && f.GroupID == "" && f.TeacherID == ""
}

// Key identifies the filter in caches.
func (f Filter) Key() string {
	return "p=" + f.PeriodID + "&s=" + f.SubjectID + "&g=" + f.GroupID + "&t=" + f.TeacherID
}

type (
	GroupFilter struct {
		Filter
		IDs        []string
		ActiveOnly bool
	}

	EnrollmentFilter struct {
		StudentID string
		GroupIDs  []string
		Status    EnrollmentStatus
	}

	GradeFilter struct {
		EnrollmentIDs []string
		From          time.Time
		To            time.Time
	}

	SessionFilter struct {
		GroupIDs []string
		From     time.Time
		To       time.Time
	}
)

// Match reports whether `grp` satisfies the filter.
func (f GroupFilter) Match(grp Group) bool {
	if f.PeriodID != "" && grp.PeriodID != f.PeriodID {
		return false
	}
	if f.SubjectID != "" && grp.SubjectID != f.SubjectID {
		return false
	}
	if f.GroupID != "" && grp.ID != f.GroupID {
		return false
	}
	if f.TeacherID != "" && grp.TeacherID != f.TeacherID {
		return false
	}
	if f.IDs != nil && !contains(f.IDs, grp.ID) {
		return false
	}
	if f.ActiveOnly && !grp.IsActive {
		return false
	}
	return true
}

// Match reports whether `enr` satisfies the filter.
func (f EnrollmentFilter) Match(enr Enrollment) bool {
	if f.StudentID != "" && enr.StudentID != f.StudentID {
		return false
	}
	if f.GroupIDs != nil && !contains(f.GroupIDs, enr.GroupID) {
		return false
	}
	if f.Status != "" && enr.Status != f.Status {
		return false
	}
	return true
}

// Match reports whether `grd` satisfies the filter.
func (f GradeFilter) Match(grd GradeRecord) bool {
	if f.EnrollmentIDs != nil && !contains(f.EnrollmentIDs, grd.EnrollmentID) {
		return false
	}
	if !f.From.IsZero() && grd.GradedOn.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && grd.GradedOn.After(f.To) {
		return false
	}
	return true
}

// Match reports whether `sess` satisfies the filter.
func (f SessionFilter) Match(sess ClassSession) bool {
	if f.GroupIDs != nil && !contains(f.GroupIDs, sess.GroupID) {
		return false
	}
	if !f.From.IsZero() && sess.HeldOn.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && sess.HeldOn.After(f.To) {
		return false
	}
	return true
}

func contains(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}
