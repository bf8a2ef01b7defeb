package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type (
	reportSubject struct {
		Name       string
		HasAverage bool
		Average    float64
	}

	reportData struct {
		Name           string
		OverallAverage float64
		Passed         int
		Failed         int
		Subjects       []reportSubject
	}
)

func newReportData(student user.User, sum stats.StudentSummary) reportData {
	data := reportData{
		Name:           student.DisplayName(),
		OverallAverage: sum.OverallAverage,
		Passed:         sum.Passed,
		Failed:         sum.Failed,
		Subjects:       make([]reportSubject, 0, len(sum.Subjects)),
	}
	for _, sg := range sum.Subjects {
		rs := reportSubject{Name: sg.SubjectName, HasAverage: sg.HasAverage()}
		if rs.HasAverage {
			rs.Average = *sg.Average
		}
		data.Subjects = append(data.Subjects, rs)
	}
	return data
}

// SendGradeReports mails each student its grade summary with the XLSX report attached.
// Without IDs, every active student is reported. Returns the number of messages sent.
func (svc *Service) SendGradeReports(ctx context.Context, studentIDs ...string) (int, error) {
	if svc.mailer == nil || svc.reports == nil {
		return 0, ErrReportsUnavailable
	}

	active := true
	filter := &user.QueryFilter{Roles: user.StudentRoles, IsActive: &active}
	if len(studentIDs) > 0 {
		filter.IDs = studentIDs
	}
	students, err := svc.users.Query(ctx, filter, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}

	messages := make([]*core.EmailMessage, 0, len(students))
	for _, student := range students {
		if student.Email == "" {
			continue
		}
		msg, err := svc.gradeReportMessage(ctx, student)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			svc.logger.Error(fmt.Sprintf("dashboard: grade report of %s: %v", student.Username, err), err, student)
			continue
		}
		messages = append(messages, msg)
	}

	if len(messages) > 0 {
		svc.mailer.SendMessages(messages...)
	}
	return len(messages), nil
}

func (svc *Service) gradeReportMessage(ctx context.Context, student user.User) (*core.EmailMessage, error) {
	sum, err := svc.StudentGrades(ctx, student.ID, false)
	if err != nil {
		return nil, err
	}

	var buff bytes.Buffer
	if err = svc.reports.WriteStudentGrades(&buff, student, sum); err != nil {
		return nil, errors.Wrap(err, "writing report")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: student.DisplayName(), Address: student.Email}},
		Subject:      svc.appName + " - Grade report",
		TemplateName: "grade_report",
		TemplateData: newReportData(student, sum),
	}
	if err = msg.Attach(&buff, "grades-"+student.Username+".xlsx", xlsxContentType); err != nil {
		return nil, errors.Wrap(err, "attaching report")
	}
	return msg, nil
}
