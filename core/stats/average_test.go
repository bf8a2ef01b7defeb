package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
)

func TestWeightedAverage(t *testing.T) {
	d := date(2021, 1, 4)
	tests := []struct {
		name   string
		grades []school.GradeRecord
		want   float64
		wantOk bool
	}{
		{name: "empty"},
		{
			name: "weighted",
			grades: []school.GradeRecord{
				grade("e1", 8, 10, 1, school.GradeQuiz, d),
				grade("e1", 15, 20, 2, school.GradeExam, d),
				grade("e1", 45, 50, 1, school.GradeProject, d),
			},
			want: 8, wantOk: true,
		},
		{
			name: "ignores invalid weights & max values",
			grades: []school.GradeRecord{
				grade("e1", 6, 10, 1, school.GradeQuiz, d),
				grade("e1", 10, 10, 0, school.GradeQuiz, d),
				grade("e1", 10, 0, 1, school.GradeQuiz, d),
			},
			want: 6, wantOk: true,
		},
		{
			name:   "only invalid",
			grades: []school.GradeRecord{grade("e1", 10, 10, 0, school.GradeQuiz, d)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WeightedAverage(tt.grades)
			assert.Equal(t, tt.wantOk, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func randomGrades(rnd *rand.Rand, enrID string, n int) []school.GradeRecord {
	grades := make([]school.GradeRecord, 0, n)
	for i := 0; i < n; i++ {
		max := float64(1 + rnd.Intn(100))
		grades = append(grades, grade(
			enrID,
			rnd.Float64()*max,
			max,
			0.1+rnd.Float64()*3,
			school.GradeTypes[rnd.Intn(len(school.GradeTypes))],
			date(2021, 1, 1+rnd.Intn(300)),
		))
	}
	return grades
}

func TestWeightedAverage_OrderInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		grades := randomGrades(rnd, "e1", 1+rnd.Intn(30))
		want, ok := WeightedAverage(grades)
		assert.True(t, ok)

		for j := 0; j < 10; j++ {
			shuffled := append([]school.GradeRecord(nil), grades...)
			rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			got, _ := WeightedAverage(shuffled)
			if got != want {
				t.Fatalf("WeightedAverage() = %v after shuffle, want %v", got, want)
			}
		}
	}
}

func TestAverageOfAverages_InRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		subjects := make([]SubjectGrades, 0, 8)
		for s := 0; s < 1+rnd.Intn(8); s++ {
			grades := randomGrades(rnd, "e", rnd.Intn(10))
			var avg *float64
			if v, ok := WeightedAverage(grades); ok {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 10.0)
				avg = &v
			}
			subjects = append(subjects, SubjectGrades{SubjectName: "S", Grades: grades, Average: avg})
		}
		sum := SummarizeStudent(subjects, false)
		assert.GreaterOrEqual(t, sum.OverallAverage, 0.0)
		assert.LessOrEqual(t, sum.OverallAverage, 10.0)
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{4, 6}))
	assert.Equal(t, 5.98, core.Round(Mean([]float64{7.46, 4.5}), 2))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 75.0, Percentage(3, 4))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Equal(t, 100.0, Percentage(5, 5))
}
