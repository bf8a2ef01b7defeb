package exportsvc

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

const (
	dateLayout   = "2006-01-02"
	defaultSheet = "Sheet1"
)

// GradesHeader is the header row of grade import sheets.
var GradesHeader = []string{"student_username", "value", "max_value", "weight", "type", "date", "comment"}

// XLSXWriter renders dashboards as excel workbooks.
type XLSXWriter struct{}

var _ dashboard.ReportWriter = XLSXWriter{}

func NewXLSXWriter() XLSXWriter {
	return XLSXWriter{}
}

// sheet writes rows one after the other, with a bold first row.
type sheet struct {
	f    *excelize.File
	name string
	row  int
	err  error
}

func newWorkbook() *excelize.File {
	return excelize.NewFile()
}

func addSheet(f *excelize.File, name string) *sheet {
	s := &sheet{f: f, name: name}
	if f.SheetCount == 1 && f.GetSheetName(0) == defaultSheet {
		s.err = f.SetSheetName(defaultSheet, name)
	} else {
		_, s.err = f.NewSheet(name)
	}
	return s
}

func (s *sheet) header(cols ...string) {
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		vals[i] = c
	}
	s.append(vals...)
	if s.err != nil {
		return
	}

	style, err := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetRowStyle(s.name, s.row, s.row, style)
}

func (s *sheet) append(vals ...interface{}) {
	if s.err != nil {
		return
	}
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.name, cell, &vals)
}

func (s *sheet) skip() {
	s.row++
}

func (s *sheet) width(cols string, w float64) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetColWidth(s.name, cols[:1], cols[len(cols)-1:], w)
}

func write(f *excelize.File, w io.Writer, sheets ...*sheet) error {
	defer f.Close()
	for _, s := range sheets {
		if s.err != nil {
			return errors.Wrapf(s.err, "writing sheet %q", s.name)
		}
	}
	f.SetActiveSheet(0)
	return errors.Wrap(f.Write(w), "writing workbook")
}

func average(avg *float64) interface{} {
	if avg == nil {
		return "-"
	}
	return *avg
}

// WriteStudentGrades writes a "Summary" sheet (one line per subject) and a "Grades" sheet listing every grade.
func (XLSXWriter) WriteStudentGrades(w io.Writer, student user.User, summary stats.StudentSummary) error {
	f := newWorkbook()

	sum := addSheet(f, "Summary")
	sum.append("Student", student.DisplayName())
	sum.append("Username", student.Username)
	sum.append("Overall average", summary.OverallAverage)
	sum.append("Passed subjects", summary.Passed)
	sum.append("Failed subjects", summary.Failed)
	sum.skip()
	sum.header("Subject", "Code", "Group", "Credits", "Grades", "Average")
	for _, sg := range summary.Subjects {
		sum.append(sg.SubjectName, sg.SubjectCode, sg.GroupName, sg.Credits, len(sg.Grades), average(sg.Average))
	}
	sum.width("A", 24)

	grades := addSheet(f, "Grades")
	grades.header("Subject", "Date", "Type", "Value", "Max value", "Weight", "Normalized", "Comment")
	for _, sg := range summary.Subjects {
		for _, g := range sg.Grades {
			grades.append(
				sg.SubjectName, g.GradedOn.Format(dateLayout), string(g.Type),
				g.Value, g.MaxValue, g.Weight, core.Round(g.Normalized(), 2), g.Comment,
			)
		}
	}
	grades.width("A", 24)

	return write(f, w, sum, grades)
}

// WriteMetrics writes one sheet per institution dashboard card.
func (XLSXWriter) WriteMetrics(w io.Writer, metrics stats.InstitutionMetrics) error {
	f := newWorkbook()

	counts := addSheet(f, "Counts")
	counts.append("Students", metrics.Counts.Students)
	counts.append("Teachers", metrics.Counts.Teachers)
	counts.append("Active groups", metrics.Counts.ActiveGroups)
	counts.append("Generated at", metrics.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	counts.width("A", 16)

	dist := addSheet(f, "Distribution")
	dist.header("Range", "Enrollments")
	for _, b := range metrics.GradeDistribution {
		dist.append(b.Label, b.Count)
	}

	att := addSheet(f, "Attendance")
	att.header("Group", "Subject", "Sessions", "Students", "Attended", "Percentage")
	for _, ga := range metrics.Attendance {
		att.append(ga.GroupName, ga.SubjectName, ga.Sessions, ga.Students, ga.Attended, ga.Percentage)
	}
	att.width("A", 24)

	trends := addSheet(f, "Trends")
	trends.header(string(metrics.Interval), "Start", "Grade average", "Grades", "Attendance %", "Records")
	for _, row := range mergeTrends(metrics.GradeTrend, metrics.AttendanceTrend) {
		trends.append(row...)
	}

	popular := addSheet(f, "Popular subjects")
	popular.header("Subject", "Code", "Students")
	for _, sp := range metrics.PopularSubjects {
		popular.append(sp.Name, sp.Code, sp.Students)
	}
	popular.width("A", 24)

	return write(f, w, counts, dist, att, trends, popular)
}

// mergeTrends joins both series on their bucket key, keeping bucket order.
func mergeTrends(grades, attendance []stats.TrendPoint) [][]interface{} {
	rows := make([][]interface{}, 0, len(grades)+len(attendance))
	byKey := make(map[string]int)
	get := func(p stats.TrendPoint) []interface{} {
		if i, ok := byKey[p.Key]; ok {
			return rows[i]
		}
		byKey[p.Key] = len(rows)
		rows = append(rows, []interface{}{p.Key, p.Start.Format(dateLayout), "", "", "", ""})
		return rows[len(rows)-1]
	}
	for _, p := range grades {
		row := get(p)
		row[2], row[3] = p.Value, p.Count
	}
	for _, p := range attendance {
		row := get(p)
		row[4], row[5] = p.Value, p.Count
	}
	// keys of one interval sort lexically in time order
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i][0].(string) < rows[j][0].(string)
	})
	return rows
}

// WriteGradesTemplate writes an import sheet pre-filled with the usernames of a group's students.
func (XLSXWriter) WriteGradesTemplate(w io.Writer, students []user.User) error {
	f := newWorkbook()

	grades := addSheet(f, "Grades")
	grades.header(GradesHeader...)
	for _, s := range students {
		grades.append(s.Username)
	}
	grades.width("A", 24)

	return write(f, w, grades)
}
