package stats

import (
	"time"

	"github.com/trezcool/escolar/core/school"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func grade(enrID string, value, max, weight float64, gt school.GradeType, on time.Time) school.GradeRecord {
	return school.GradeRecord{EnrollmentID: enrID, Value: value, MaxValue: max, Weight: weight, Type: gt, GradedOn: on}
}

func fptr(f float64) *float64 { return &f }
