package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
)

// seedRand is seeded so that demo schools are reproducible.
var seedRand = rand.New(rand.NewSource(1))

var demoSubjects = []school.Subject{
	{Name: "Mathematics", Code: "MAT", Credits: 4},
	{Name: "Physics", Code: "PHY", Credits: 3},
	{Name: "Biology", Code: "BIO", Credits: 3},
	{Name: "Literature", Code: "LIT", Credits: 2},
	{Name: "History", Code: "HIS", Credits: 2},
}

// seed creates a demo school: one active period, a group per subject, two teachers, `students` students
// enrolled in 3 to 5 subjects, with a weekly class session & grade per group over the last `weeks` weeks.
func (cli *commandLine) seed(students, weeks int, pwd string) error {
	ctx := context.Background()
	now := nowFunc().UTC()

	// hash once, bcrypt is slow
	var proto user.User
	if err := proto.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	createUser := func(name, uname string, roles []string) (user.User, error) {
		usr, err := cli.usrRepo.CreateUser(ctx, user.User{
			Name:         name,
			Username:     uname,
			Email:        uname + "@escolar.local",
			IsActive:     true,
			Roles:        roles,
			PasswordHash: proto.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return usr, errors.Wrapf(err, "creating user %s", uname)
	}

	teachers := make([]user.User, 0, 2)
	for i := 1; i <= 2; i++ {
		usr, err := createUser(fmt.Sprintf("Teacher %d", i), fmt.Sprintf("teacher%d", i), user.TeacherRoles)
		if err != nil {
			return err
		}
		teachers = append(teachers, usr)
	}
	studentUsrs := make([]user.User, 0, students)
	for i := 1; i <= students; i++ {
		usr, err := createUser(fmt.Sprintf("Student %02d", i), fmt.Sprintf("student%02d", i), user.StudentRoles)
		if err != nil {
			return err
		}
		studentUsrs = append(studentUsrs, usr)
	}

	start := mondayOf(now).AddDate(0, 0, -7*(weeks-1))
	period, err := cli.schoolRepo.CreatePeriod(ctx, school.Period{
		Name:     fmt.Sprintf("%d demo", start.Year()),
		StartsOn: start,
		EndsOn:   start.AddDate(0, 0, 7*(weeks+12)),
		IsActive: true,
	})
	if err != nil {
		return errors.Wrap(err, "creating period")
	}

	groups := make([]school.Group, 0, len(demoSubjects))
	for i, subj := range demoSubjects {
		if subj, err = cli.schoolRepo.CreateSubject(ctx, subj); err != nil {
			return errors.Wrapf(err, "creating subject %s", demoSubjects[i].Code)
		}
		grp, err := cli.schoolRepo.CreateGroup(ctx, school.Group{
			Name:      subj.Name + " A",
			SubjectID: subj.ID,
			PeriodID:  period.ID,
			TeacherID: teachers[i%len(teachers)].ID,
			IsActive:  true,
		})
		if err != nil {
			return errors.Wrapf(err, "creating group of %s", subj.Code)
		}
		groups = append(groups, grp)
	}

	// {groupID: active enrollments}
	enrolled := make(map[string][]school.Enrollment, len(groups))
	ability := make(map[string]float64, students) // {studentID: mean normalized grade}
	for _, student := range studentUsrs {
		ability[student.ID] = 4 + seedRand.Float64()*5.5
		for _, gi := range seedRand.Perm(len(groups))[:3+seedRand.Intn(3)] {
			status := school.EnrollmentActive
			if seedRand.Float64() < 0.05 {
				status = school.EnrollmentDropped
			}
			enr, err := cli.schoolRepo.CreateEnrollment(ctx, school.Enrollment{
				StudentID:  student.ID,
				GroupID:    groups[gi].ID,
				Status:     status,
				EnrolledAt: start,
			})
			if err != nil {
				return errors.Wrap(err, "creating enrollment")
			}
			if enr.IsActive() {
				enrolled[groups[gi].ID] = append(enrolled[groups[gi].ID], enr)
			}
		}
	}

	var nGrades, nSessions int
	for _, grp := range groups {
		for w := 0; w < weeks; w++ {
			day := start.AddDate(0, 0, 7*w+seedRand.Intn(5))

			sess, err := cli.schoolRepo.CreateSession(ctx, school.ClassSession{
				GroupID: grp.ID,
				HeldOn:  day,
				Topic:   fmt.Sprintf("%s, week %d", grp.Name, w+1),
			})
			if err != nil {
				return errors.Wrap(err, "creating session")
			}
			nSessions++

			gt, weight, maxVal := demoEvaluation(w)
			records := make([]school.AttendanceRecord, 0, len(enrolled[grp.ID]))
			grades := make([]school.GradeRecord, 0, len(enrolled[grp.ID]))
			for _, enr := range enrolled[grp.ID] {
				records = append(records, school.AttendanceRecord{
					SessionID: sess.ID,
					StudentID: enr.StudentID,
					Status:    demoAttendance(),
				})
				score := ability[enr.StudentID] + seedRand.NormFloat64()*1.5
				score = core.Round(clamp(score, 0, 10)*maxVal/10, 1)
				grades = append(grades, school.GradeRecord{
					EnrollmentID: enr.ID,
					Value:        score,
					MaxValue:     maxVal,
					Weight:       weight,
					Type:         gt,
					GradedOn:     day,
				})
			}
			if len(records) == 0 {
				continue
			}
			if _, err = cli.schoolRepo.RecordAttendance(ctx, records); err != nil {
				return errors.Wrap(err, "recording attendance")
			}
			if _, err = cli.schoolRepo.CreateGrades(ctx, grades); err != nil {
				return errors.Wrap(err, "creating grades")
			}
			nGrades += len(grades)
		}
	}

	cli.logger.Info(fmt.Sprintf(
		"seeded %d students, %d teachers, %d groups, %d sessions & %d grades",
		len(studentUsrs), len(teachers), len(groups), nSessions, nGrades,
	))
	return nil
}

// demoEvaluation returns the evaluation of the week: an exam every 4th week, quizzes & homework otherwise.
func demoEvaluation(week int) (school.GradeType, float64, float64) {
	switch {
	case week%4 == 3:
		return school.GradeExam, 3, 20
	case week%4 == 1:
		return school.GradeHomework, 1, 10
	case week%8 == 2:
		return school.GradeProject, 2, 20
	default:
		return school.GradeQuiz, 1, 10
	}
}

func demoAttendance() school.AttendanceStatus {
	switch p := seedRand.Float64(); {
	case p < 0.80:
		return school.AttendancePresent
	case p < 0.88:
		return school.AttendanceLate
	case p < 0.96:
		return school.AttendanceAbsent
	default:
		return school.AttendanceExcused
	}
}

func mondayOf(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7 // days since monday
	return t.AddDate(0, 0, -offset)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
