package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
)

// BucketCount is the number of grade distribution buckets, each 1 point wide on the 0-10 scale.
const BucketCount = 10

type (
	Counts struct {
		Students     int `json:"students"`
		Teachers     int `json:"teachers"`
		ActiveGroups int `json:"active_groups"`
	}

	Bucket struct {
		Label string  `json:"label"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
		Count int     `json:"count"`
	}

	GroupAttendance struct {
		GroupID     string  `json:"group_id"`
		GroupName   string  `json:"group_name"`
		SubjectName string  `json:"subject_name"`
		Sessions    int     `json:"sessions"`
		Students    int     `json:"students"`
		Attended    int     `json:"attended"`
		Percentage  float64 `json:"percentage"`
	}

	TrendPoint struct {
		Key   string    `json:"key"`
		Start time.Time `json:"start"`
		Value float64   `json:"value"`
		Count int       `json:"count"`
	}

	SubjectPopularity struct {
		SubjectID string `json:"subject_id"`
		Name      string `json:"name"`
		Code      string `json:"code"`
		Students  int    `json:"students"`
	}

	// Dataset holds the records fetched for one institution-wide request.
	Dataset struct {
		Groups      []school.Group
		Enrollments []school.Enrollment
		Grades      []school.GradeRecord
		Sessions    []school.ClassSession
		Attendance  []school.AttendanceRecord
	}

	Options struct {
		Interval Interval
		TopN     int
	}

	InstitutionMetrics struct {
		Filter            school.Filter       `json:"filter"`
		Interval          Interval            `json:"interval"`
		Counts            Counts              `json:"counts"`
		GradeDistribution []Bucket            `json:"grade_distribution"`
		Attendance        []GroupAttendance   `json:"attendance"`
		GradeTrend        []TrendPoint        `json:"grade_trend"`
		AttendanceTrend   []TrendPoint        `json:"attendance_trend"`
		PopularSubjects   []SubjectPopularity `json:"popular_subjects"`
		GeneratedAt       time.Time           `json:"generated_at"`
	}
)

// ComputeInstitutionMetrics reduces a Dataset into the institution dashboard.
func ComputeInstitutionMetrics(ds Dataset, opts Options) InstitutionMetrics {
	if opts.Interval == "" {
		opts.Interval = Weekly
	}
	return InstitutionMetrics{
		Interval:          opts.Interval,
		Counts:            CountEntities(ds.Groups, ds.Enrollments),
		GradeDistribution: GradeDistribution(ds.Grades),
		Attendance:        AttendanceByGroup(ds.Groups, ds.Enrollments, ds.Sessions, ds.Attendance),
		GradeTrend:        GradeTrend(ds.Grades, opts.Interval),
		AttendanceTrend:   AttendanceTrend(ds.Groups, ds.Enrollments, ds.Sessions, ds.Attendance, opts.Interval),
		PopularSubjects:   PopularSubjects(ds.Enrollments, opts.TopN),
	}
}

// CountEntities counts the distinct actively enrolled students, the distinct teachers and the active groups.
func CountEntities(groups []school.Group, enrollments []school.Enrollment) Counts {
	var cnt Counts
	teachers := make(map[string]struct{})
	for _, grp := range groups {
		if grp.IsActive {
			cnt.ActiveGroups++
		}
		if grp.TeacherID != "" {
			teachers[grp.TeacherID] = struct{}{}
		}
	}
	students := make(map[string]struct{})
	for _, enr := range enrollments {
		if enr.IsActive() {
			students[enr.StudentID] = struct{}{}
		}
	}
	cnt.Students = len(students)
	cnt.Teachers = len(teachers)
	return cnt
}

// NewBuckets returns the empty grade distribution buckets "0-1" ... "9-10".
func NewBuckets() []Bucket {
	buckets := make([]Bucket, BucketCount)
	for i := range buckets {
		buckets[i] = Bucket{
			Label: fmt.Sprintf("%d-%d", i, i+1),
			Min:   float64(i),
			Max:   float64(i + 1),
		}
	}
	return buckets
}

// BucketIndex returns the bucket of a 0-10 average. The last bucket is closed: 10 falls in "9-10".
func BucketIndex(avg float64) int {
	idx := int(math.Floor(avg))
	if idx < 0 {
		return 0
	}
	if idx >= BucketCount {
		return BucketCount - 1
	}
	return idx
}

// GradeDistribution buckets the weighted average of each enrollment's grades.
// Enrollments without a defined average are not counted.
func GradeDistribution(grades []school.GradeRecord) []Bucket {
	byEnrollment := make(map[string][]school.GradeRecord)
	for _, g := range grades {
		byEnrollment[g.EnrollmentID] = append(byEnrollment[g.EnrollmentID], g)
	}

	buckets := NewBuckets()
	for _, enrGrades := range byEnrollment {
		if avg, ok := WeightedAverage(enrGrades); ok {
			buckets[BucketIndex(avg)].Count++
		}
	}
	return buckets
}

// activeStudents maps each group ID to the set of its actively enrolled students.
func activeStudents(enrollments []school.Enrollment) map[string]map[string]struct{} {
	res := make(map[string]map[string]struct{})
	for _, enr := range enrollments {
		if !enr.IsActive() {
			continue
		}
		set, ok := res[enr.GroupID]
		if !ok {
			set = make(map[string]struct{})
			res[enr.GroupID] = set
		}
		set[enr.StudentID] = struct{}{}
	}
	return res
}

// attendedBySession counts, per session, the distinct students who attended and are actively enrolled in the session's group.
func attendedBySession(
	sessions []school.ClassSession,
	students map[string]map[string]struct{},
	records []school.AttendanceRecord,
) map[string]int {
	sessGroups := make(map[string]string, len(sessions)) // {sessionID: groupID}
	for _, sess := range sessions {
		sessGroups[sess.ID] = sess.GroupID
	}

	seen := make(map[[2]string]struct{}, len(records))
	attended := make(map[string]int, len(sessions))
	for _, rec := range records {
		if !rec.Status.Attended() {
			continue
		}
		grpID, ok := sessGroups[rec.SessionID]
		if !ok {
			continue
		}
		if _, ok := students[grpID][rec.StudentID]; !ok {
			continue
		}
		key := [2]string{rec.SessionID, rec.StudentID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		attended[rec.SessionID]++
	}
	return attended
}

// AttendanceByGroup returns, per group, attended / (sessions × active students) as a percentage.
func AttendanceByGroup(
	groups []school.Group,
	enrollments []school.Enrollment,
	sessions []school.ClassSession,
	records []school.AttendanceRecord,
) []GroupAttendance {
	students := activeStudents(enrollments)
	attended := attendedBySession(sessions, students, records)

	sessCount := make(map[string]int, len(groups))
	attCount := make(map[string]int, len(groups))
	for _, sess := range sessions {
		sessCount[sess.GroupID]++
		attCount[sess.GroupID] += attended[sess.ID]
	}

	res := make([]GroupAttendance, 0, len(groups))
	for _, grp := range groups {
		ga := GroupAttendance{
			GroupID:     grp.ID,
			GroupName:   grp.Name,
			SubjectName: grp.Subject.Name,
			Sessions:    sessCount[grp.ID],
			Students:    len(students[grp.ID]),
			Attended:    attCount[grp.ID],
		}
		ga.Percentage = Percentage(ga.Attended, ga.Sessions*ga.Students)
		res = append(res, ga)
	}
	return res
}

// GradeTrend returns the weighted average grade of each interval holding grades, in chronological order.
func GradeTrend(grades []school.GradeRecord, interval Interval) []TrendPoint {
	byKey := make(map[string][]school.GradeRecord)
	starts := make(map[string]time.Time)
	for _, g := range grades {
		key := interval.Key(g.GradedOn)
		byKey[key] = append(byKey[key], g)
		starts[key] = interval.Start(g.GradedOn)
	}

	points := make([]TrendPoint, 0, len(byKey))
	for key, keyGrades := range byKey {
		avg, ok := WeightedAverage(keyGrades)
		if !ok {
			continue
		}
		points = append(points, TrendPoint{Key: key, Start: starts[key], Value: core.Round(avg, 2), Count: len(keyGrades)})
	}
	sortTrend(points)
	return points
}

// AttendanceTrend returns, for each interval holding sessions, the attended share of the expected presences
// (each session expects its group's active students), in chronological order.
func AttendanceTrend(
	groups []school.Group,
	enrollments []school.Enrollment,
	sessions []school.ClassSession,
	records []school.AttendanceRecord,
	interval Interval,
) []TrendPoint {
	known := make(map[string]struct{}, len(groups))
	for _, grp := range groups {
		known[grp.ID] = struct{}{}
	}
	students := activeStudents(enrollments)
	attended := attendedBySession(sessions, students, records)

	type acc struct {
		start              time.Time
		sessions, expected int
		attended           int
	}
	byKey := make(map[string]*acc)
	for _, sess := range sessions {
		if _, ok := known[sess.GroupID]; !ok {
			continue
		}
		key := interval.Key(sess.HeldOn)
		a, ok := byKey[key]
		if !ok {
			a = &acc{start: interval.Start(sess.HeldOn)}
			byKey[key] = a
		}
		a.sessions++
		a.expected += len(students[sess.GroupID])
		a.attended += attended[sess.ID]
	}

	points := make([]TrendPoint, 0, len(byKey))
	for key, a := range byKey {
		points = append(points, TrendPoint{Key: key, Start: a.start, Value: Percentage(a.attended, a.expected), Count: a.sessions})
	}
	sortTrend(points)
	return points
}

func sortTrend(points []TrendPoint) {
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Start.Equal(points[j].Start) {
			return points[i].Start.Before(points[j].Start)
		}
		return points[i].Key < points[j].Key
	})
}

// PopularSubjects ranks subjects by their distinct actively enrolled students, ties broken by name.
// n <= 0 returns the full ranking.
func PopularSubjects(enrollments []school.Enrollment, n int) []SubjectPopularity {
	subjects := make(map[string]school.Subject)
	students := make(map[string]map[string]struct{})
	for _, enr := range enrollments {
		if !enr.IsActive() {
			continue
		}
		subj := enr.Group.Subject
		if subj.ID == "" {
			subj.ID = enr.Group.SubjectID
		}
		if subj.ID == "" {
			continue
		}
		subjects[subj.ID] = subj
		set, ok := students[subj.ID]
		if !ok {
			set = make(map[string]struct{})
			students[subj.ID] = set
		}
		set[enr.StudentID] = struct{}{}
	}

	ranking := make([]SubjectPopularity, 0, len(subjects))
	for id, subj := range subjects {
		ranking = append(ranking, SubjectPopularity{SubjectID: id, Name: subj.Name, Code: subj.Code, Students: len(students[id])})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Students != ranking[j].Students {
			return ranking[i].Students > ranking[j].Students
		}
		if ranking[i].Name != ranking[j].Name {
			return ranking[i].Name < ranking[j].Name
		}
		return ranking[i].SubjectID < ranking[j].SubjectID
	})
	if n > 0 && len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}
