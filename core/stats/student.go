package stats

import (
	"sort"
	"time"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
)

type (
	// SubjectGrades holds a student's grades in one active enrollment.
	// Average is the enrollment's weighted average, nil when it has no grades.
	SubjectGrades struct {
		EnrollmentID string               `json:"enrollment_id"`
		GroupID      string               `json:"group_id"`
		GroupName    string               `json:"group_name"`
		SubjectID    string               `json:"subject_id"`
		SubjectName  string               `json:"subject_name"`
		SubjectCode  string               `json:"subject_code"`
		Credits      int                  `json:"credits"`
		Grades       []school.GradeRecord `json:"grades"`
		Average      *float64             `json:"average"`
	}

	EvolutionPoint struct {
		Week      string    `json:"week"`
		Date      time.Time `json:"date"`
		SubjectID string    `json:"subject_id,omitempty"`
		Subject   string    `json:"subject,omitempty"`
		Average   float64   `json:"average"`
	}

	ChartPoint struct {
		Label string  `json:"label"`
		Value float64 `json:"value"`
	}

	TypeCount struct {
		Type  school.GradeType `json:"type"`
		Count int              `json:"count"`
	}

	StudentSummary struct {
		Subjects         []SubjectGrades  `json:"subjects"`
		OverallAverage   float64          `json:"overall_average"`
		Passed           int              `json:"passed"`
		Failed           int              `json:"failed"`
		Evolution        []EvolutionPoint `json:"evolution"`
		Bar              []ChartPoint     `json:"bar"`
		Radar            []ChartPoint     `json:"radar"`
		TypeDistribution []TypeCount      `json:"type_distribution"`
	}
)

// NewSubjectGrades builds the SubjectGrades of an enrollment (with its embedded group & subject).
func NewSubjectGrades(enr school.Enrollment, grades []school.GradeRecord, avg *float64) SubjectGrades {
	if grades == nil {
		grades = []school.GradeRecord{}
	}
	return SubjectGrades{
		EnrollmentID: enr.ID,
		GroupID:      enr.GroupID,
		GroupName:    enr.Group.Name,
		SubjectID:    enr.Group.SubjectID,
		SubjectName:  enr.Group.Subject.Name,
		SubjectCode:  enr.Group.Subject.Code,
		Credits:      enr.Group.Subject.Credits,
		Grades:       grades,
		Average:      avg,
	}
}

func (sg SubjectGrades) HasAverage() bool { return sg.Average != nil }

// Passed reports whether the subject average reaches PassThreshold.
func (sg SubjectGrades) Passed() bool {
	return sg.Average != nil && *sg.Average >= PassThreshold
}

// SummarizeStudent reduces a student's subjects into the dashboard cards & charts.
// When merged is set, the evolution series of all subjects are averaged per date into a single series.
func SummarizeStudent(subjects []SubjectGrades, merged bool) StudentSummary {
	sum := StudentSummary{
		Subjects:  make([]SubjectGrades, 0, len(subjects)),
		Evolution: []EvolutionPoint{},
	}

	averages := make([]float64, 0, len(subjects))
	for _, sg := range subjects {
		if sg.Average != nil {
			avg := core.Round(*sg.Average, 2)
			sg.Average = &avg
			averages = append(averages, avg)
			if sg.Passed() {
				sum.Passed++
			} else {
				sum.Failed++
			}
		}
		sum.Subjects = append(sum.Subjects, sg)
	}
	sum.OverallAverage = core.Round(Mean(averages), 2)

	if merged {
		sum.Evolution = MergeEvolution(sum.Subjects)
	} else {
		for _, sg := range sum.Subjects {
			sum.Evolution = append(sum.Evolution, SubjectEvolution(sg)...)
		}
	}
	sum.Bar = BarChart(sum.Subjects)
	sum.Radar = RadarByType(sum.Subjects)
	sum.TypeDistribution = TypeDistribution(sum.Subjects)
	return sum
}

// SubjectEvolution returns, for each ISO week holding grades, the cumulative weighted average
// of all the subject's grades up to the end of that week.
func SubjectEvolution(sg SubjectGrades) []EvolutionPoint {
	grades := append([]school.GradeRecord(nil), sg.Grades...)
	sort.SliceStable(grades, func(i, j int) bool { return grades[i].GradedOn.Before(grades[j].GradedOn) })

	points := make([]EvolutionPoint, 0)
	seen := make([]school.GradeRecord, 0, len(grades))
	for i, g := range grades {
		seen = append(seen, g)
		week := ISOWeekKey(g.GradedOn)
		if i+1 < len(grades) && ISOWeekKey(grades[i+1].GradedOn) == week {
			continue // week not over yet
		}
		avg, ok := WeightedAverage(seen)
		if !ok {
			continue
		}
		points = append(points, EvolutionPoint{
			Week:      week,
			Date:      WeekStart(g.GradedOn),
			SubjectID: sg.SubjectID,
			Subject:   sg.SubjectName,
			Average:   core.Round(avg, 2),
		})
	}
	return points
}

// MergeEvolution averages the subjects' evolution values sharing the same date.
func MergeEvolution(subjects []SubjectGrades) []EvolutionPoint {
	byDate := make(map[time.Time][]float64)
	weeks := make(map[time.Time]string)
	for _, sg := range subjects {
		for _, p := range SubjectEvolution(sg) {
			byDate[p.Date] = append(byDate[p.Date], p.Average)
			weeks[p.Date] = p.Week
		}
	}

	points := make([]EvolutionPoint, 0, len(byDate))
	for date, vals := range byDate {
		points = append(points, EvolutionPoint{Week: weeks[date], Date: date, Average: core.Round(Mean(vals), 2)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// BarChart projects each subject's average, subjects without grades are left out.
func BarChart(subjects []SubjectGrades) []ChartPoint {
	points := make([]ChartPoint, 0, len(subjects))
	for _, sg := range subjects {
		if sg.Average == nil {
			continue
		}
		points = append(points, ChartPoint{Label: sg.SubjectName, Value: core.Round(*sg.Average, 2)})
	}
	return points
}

// RadarByType returns the weighted average grade per evaluation type across all subjects.
// Every type is present so that radar axes stay stable, types without grades score 0.
func RadarByType(subjects []SubjectGrades) []ChartPoint {
	byType := groupByType(subjects)
	points := make([]ChartPoint, 0, len(school.GradeTypes))
	for _, gt := range school.GradeTypes {
		avg, _ := WeightedAverage(byType[gt])
		points = append(points, ChartPoint{Label: string(gt), Value: core.Round(avg, 2)})
	}
	return points
}

// TypeDistribution counts the grades per evaluation type across all subjects.
func TypeDistribution(subjects []SubjectGrades) []TypeCount {
	byType := groupByType(subjects)
	counts := make([]TypeCount, 0, len(school.GradeTypes))
	for _, gt := range school.GradeTypes {
		counts = append(counts, TypeCount{Type: gt, Count: len(byType[gt])})
	}
	return counts
}

func groupByType(subjects []SubjectGrades) map[school.GradeType][]school.GradeRecord {
	byType := make(map[school.GradeType][]school.GradeRecord, len(school.GradeTypes))
	for _, sg := range subjects {
		for _, g := range sg.Grades {
			byType[g.Type] = append(byType[g.Type], g)
		}
	}
	return byType
}
