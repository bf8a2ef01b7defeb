package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core/school"
)

func studentSubjects() []SubjectGrades {
	return []SubjectGrades{
		{
			EnrollmentID: "e-math",
			SubjectID:    "math",
			SubjectName:  "Mathematics",
			Grades: []school.GradeRecord{
				grade("e-math", 5, 10, 2, school.GradeHomework, date(2021, time.January, 12)),
				grade("e-math", 14, 20, 1, school.GradeExam, date(2021, time.January, 4)),
				grade("e-math", 8, 10, 1, school.GradeQuiz, date(2021, time.January, 6)),
			},
			Average: fptr(7.456),
		},
		{
			EnrollmentID: "e-phys",
			SubjectID:    "phys",
			SubjectName:  "Physics",
			Grades: []school.GradeRecord{
				grade("e-phys", 9, 20, 1, school.GradeExam, date(2021, time.January, 5)),
			},
			Average: fptr(4.5),
		},
		{
			EnrollmentID: "e-hist",
			SubjectID:    "hist",
			SubjectName:  "History",
			Grades:       []school.GradeRecord{},
		},
	}
}

func TestSummarizeStudent(t *testing.T) {
	sum := SummarizeStudent(studentSubjects(), false)

	require.Len(t, sum.Subjects, 3)
	require.NotNil(t, sum.Subjects[0].Average)
	assert.Equal(t, 7.46, *sum.Subjects[0].Average)
	assert.Nil(t, sum.Subjects[2].Average)

	assert.Equal(t, 5.98, sum.OverallAverage)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Failed)

	assert.Equal(t, []ChartPoint{{Label: "Mathematics", Value: 7.46}, {Label: "Physics", Value: 4.5}}, sum.Bar)
	assert.Equal(t, []ChartPoint{
		{Label: "exam", Value: 5.75},
		{Label: "quiz", Value: 8},
		{Label: "homework", Value: 5},
		{Label: "project", Value: 0},
		{Label: "participation", Value: 0},
	}, sum.Radar)
	assert.Equal(t, []TypeCount{
		{Type: school.GradeExam, Count: 2},
		{Type: school.GradeQuiz, Count: 1},
		{Type: school.GradeHomework, Count: 1},
		{Type: school.GradeProject, Count: 0},
		{Type: school.GradeParticipation, Count: 0},
	}, sum.TypeDistribution)

	assert.Equal(t, []EvolutionPoint{
		{Week: "2021-W01", Date: date(2021, time.January, 4), SubjectID: "math", Subject: "Mathematics", Average: 7.5},
		{Week: "2021-W02", Date: date(2021, time.January, 11), SubjectID: "math", Subject: "Mathematics", Average: 6.25},
		{Week: "2021-W01", Date: date(2021, time.January, 4), SubjectID: "phys", Subject: "Physics", Average: 4.5},
	}, sum.Evolution)
}

func TestSummarizeStudent_Merged(t *testing.T) {
	sum := SummarizeStudent(studentSubjects(), true)
	assert.Equal(t, []EvolutionPoint{
		{Week: "2021-W01", Date: date(2021, time.January, 4), Average: 6},
		{Week: "2021-W02", Date: date(2021, time.January, 11), Average: 6.25},
	}, sum.Evolution)
}

func TestSummarizeStudent_Empty(t *testing.T) {
	sum := SummarizeStudent(nil, false)
	assert.Equal(t, 0.0, sum.OverallAverage)
	assert.Zero(t, sum.Passed)
	assert.Zero(t, sum.Failed)
	assert.Empty(t, sum.Evolution)
	assert.Empty(t, sum.Bar)
	assert.Len(t, sum.Radar, len(school.GradeTypes))
}

func TestSummarizeStudent_PassThreshold(t *testing.T) {
	sum := SummarizeStudent([]SubjectGrades{
		{SubjectName: "A", Average: fptr(6)},
		{SubjectName: "B", Average: fptr(5.999)}, // rounds up to 6
		{SubjectName: "C", Average: fptr(5.99)},
	}, false)
	assert.Equal(t, 2, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
}

func TestSubjectEvolution_YearBoundary(t *testing.T) {
	sg := SubjectGrades{
		SubjectID:   "math",
		SubjectName: "Mathematics",
		Grades: []school.GradeRecord{
			grade("e1", 6, 10, 1, school.GradeQuiz, date(2021, time.January, 2)),
			grade("e1", 8, 10, 1, school.GradeQuiz, date(2020, time.December, 31)),
			grade("e1", 10, 10, 2, school.GradeExam, date(2021, time.January, 5)),
		},
	}
	assert.Equal(t, []EvolutionPoint{
		{Week: "2020-W53", Date: date(2020, time.December, 28), SubjectID: "math", Subject: "Mathematics", Average: 7},
		{Week: "2021-W01", Date: date(2021, time.January, 4), SubjectID: "math", Subject: "Mathematics", Average: 8.5},
	}, SubjectEvolution(sg))
}
