package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

var nowFunc = time.Now // mockable

// Service assembles the student & institution dashboards from the school query layer.
// Independent fetches run concurrently, failed fetches are logged and treated as empty.
type Service struct {
	repo      school.Repository
	users     Users
	logger    core.Logger
	cache     Cache
	snapshots SnapshotStore
	recorder  Recorder
	mailer    core.EmailService
	reports   ReportWriter

	concurrency int
	topN        int
	interval    stats.Interval
	appName     string
}

func NewService(conf *core.Config, deps Deps) *Service {
	svc := &Service{
		repo:        deps.Repo,
		users:       deps.Users,
		logger:      deps.Logger,
		cache:       deps.Cache,
		snapshots:   deps.Snapshots,
		recorder:    deps.Recorder,
		mailer:      deps.Mailer,
		reports:     deps.Reports,
		concurrency: conf.Dashboard.Concurrency,
		topN:        conf.Dashboard.TopSubjects,
		appName:     conf.AppName,
	}
	if svc.recorder == nil {
		svc.recorder = nopRecorder{}
	}
	if svc.concurrency <= 0 {
		svc.concurrency = 1
	}
	interval, err := stats.ParseInterval(conf.Dashboard.Interval)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard: %v, using %q", err, stats.Weekly))
		interval = stats.Weekly
	}
	svc.interval = interval
	return svc
}

func (svc *Service) DefaultInterval() stats.Interval { return svc.interval }

func (svc *Service) observe(name string, start time.Time) {
	svc.recorder.ObserveAggregation(name, nowFunc().Sub(start))
}

// degrade logs a failed fetch so that the caller can carry on with empty data.
// Context cancellation is the only error handed back.
func (svc *Service) degrade(ctx context.Context, source string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	svc.recorder.FetchFailed(source)
	svc.logger.Error(fmt.Sprintf("dashboard: fetching %s: %v", source, err), err)
	return nil
}

func (svc *Service) newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	return g, gctx
}

// StudentGrades summarizes the grades of the student's active enrollments.
// The server-computed average of each enrollment is used when available, a local one otherwise.
func (svc *Service) StudentGrades(ctx context.Context, studentID string, merged bool) (stats.StudentSummary, error) {
	defer svc.observe("student_grades", nowFunc())

	enrollments, err := svc.repo.QueryEnrollments(ctx, school.EnrollmentFilter{
		StudentID: studentID,
		Status:    school.EnrollmentActive,
	})
	if err != nil {
		if err = svc.degrade(ctx, "enrollments", err); err != nil {
			return stats.StudentSummary{}, err
		}
		enrollments = nil
	}

	grades := make([][]school.GradeRecord, len(enrollments))
	averages := make([]*float64, len(enrollments))
	g, gctx := svc.newGroup(ctx)
	for i, enr := range enrollments {
		i, enrID := i, enr.ID
		g.Go(func() error {
			res, err := svc.repo.QueryGrades(gctx, school.GradeFilter{EnrollmentIDs: []string{enrID}})
			if err != nil {
				return svc.degrade(gctx, "grades", err)
			}
			grades[i] = res
			return nil
		})
		g.Go(func() error {
			avg, err := svc.repo.EnrollmentAverage(gctx, enrID)
			if err != nil {
				return svc.degrade(gctx, "enrollment average", err)
			}
			averages[i] = avg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats.StudentSummary{}, err
	}

	subjects := make([]stats.SubjectGrades, 0, len(enrollments))
	for i, enr := range enrollments {
		avg := averages[i]
		if avg == nil {
			if local, ok := stats.WeightedAverage(grades[i]); ok {
				avg = &local
			}
		}
		subjects = append(subjects, stats.NewSubjectGrades(enr, grades[i], avg))
	}
	return stats.SummarizeStudent(subjects, merged), nil
}

// InstitutionMetrics returns the cached metrics of the filter & interval, computing (and caching) them on a miss.
func (svc *Service) InstitutionMetrics(ctx context.Context, filter school.Filter, interval stats.Interval) (stats.InstitutionMetrics, error) {
	if interval == "" {
		interval = svc.interval
	}
	key := Key(filter, interval)

	if svc.cache != nil {
		metrics, err := svc.cache.GetMetrics(ctx, key)
		if err == nil {
			svc.recorder.CacheLookup(true)
			return metrics, nil
		}
		svc.recorder.CacheLookup(false)
		if !errors.Is(err, ErrCacheMiss) {
			svc.logger.Warn(fmt.Sprintf("dashboard: reading metrics cache: %v", err), err)
		}
	}

	metrics, err := svc.ComputeMetrics(ctx, filter, interval)
	if err != nil {
		return stats.InstitutionMetrics{}, err
	}

	if svc.cache != nil {
		if err := svc.cache.SetMetrics(ctx, key, metrics); err != nil {
			svc.logger.Warn(fmt.Sprintf("dashboard: writing metrics cache: %v", err), err)
		}
	}
	return metrics, nil
}

// InvalidateCache drops every cached metrics entry, once new records make them stale.
func (svc *Service) InvalidateCache(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.InvalidateMetrics(ctx); err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard: invalidating metrics cache: %v", err), err)
	}
}

// ComputeMetrics fetches groups, then their enrollments, then grades & sessions (then attendance) and reduces them.
// Without filter, student & teacher counts are taken from the active users.
func (svc *Service) ComputeMetrics(ctx context.Context, filter school.Filter, interval stats.Interval) (stats.InstitutionMetrics, error) {
	defer svc.observe("institution_metrics", nowFunc())

	if interval == "" {
		interval = svc.interval
	}
	var ds stats.Dataset

	groups, err := svc.repo.QueryGroups(ctx, school.GroupFilter{Filter: filter}, nil)
	if err != nil {
		if err = svc.degrade(ctx, "groups", err); err != nil {
			return stats.InstitutionMetrics{}, err
		}
	}
	ds.Groups = groups
	groupIDs := make([]string, 0, len(groups))
	for _, grp := range groups {
		groupIDs = append(groupIDs, grp.ID)
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, school.EnrollmentFilter{GroupIDs: groupIDs})
	if err != nil {
		if err = svc.degrade(ctx, "enrollments", err); err != nil {
			return stats.InstitutionMetrics{}, err
		}
	}
	ds.Enrollments = enrollments
	enrIDs := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		enrIDs = append(enrIDs, enr.ID)
	}

	var students, teachers int
	countUsers := filter.IsEmpty()
	g, gctx := svc.newGroup(ctx)

	g.Go(func() error {
		grades, err := svc.repo.QueryGrades(gctx, school.GradeFilter{EnrollmentIDs: enrIDs})
		if err != nil {
			return svc.degrade(gctx, "grades", err)
		}
		ds.Grades = grades
		return nil
	})
	g.Go(func() error {
		sessions, err := svc.repo.QuerySessions(gctx, school.SessionFilter{GroupIDs: groupIDs})
		if err != nil {
			return svc.degrade(gctx, "sessions", err)
		}
		ds.Sessions = sessions

		sessIDs := make([]string, 0, len(sessions))
		for _, sess := range sessions {
			sessIDs = append(sessIDs, sess.ID)
		}
		records, err := svc.repo.QueryAttendance(gctx, sessIDs)
		if err != nil {
			return svc.degrade(gctx, "attendance", err)
		}
		ds.Attendance = records
		return nil
	})
	if countUsers {
		g.Go(func() error {
			cnt, err := svc.countActiveUsers(gctx, user.StudentRoles)
			if err != nil {
				return svc.degrade(gctx, "student count", err)
			}
			students = cnt
			return nil
		})
		g.Go(func() error {
			cnt, err := svc.countActiveUsers(gctx, user.TeacherRoles)
			if err != nil {
				return svc.degrade(gctx, "teacher count", err)
			}
			teachers = cnt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats.InstitutionMetrics{}, err
	}

	metrics := stats.ComputeInstitutionMetrics(ds, stats.Options{Interval: interval, TopN: svc.topN})
	if countUsers {
		metrics.Counts.Students = students
		metrics.Counts.Teachers = teachers
	}
	metrics.Filter = filter
	metrics.GeneratedAt = nowFunc().UTC()
	return metrics, nil
}

func (svc *Service) countActiveUsers(ctx context.Context, roles []string) (int, error) {
	active := true
	return svc.users.Count(ctx, &user.QueryFilter{Roles: roles, IsActive: &active})
}

// CanViewStudent reports whether `viewer` may see the grades of the student:
// admins see everyone, teachers see the students enrolled in one of their groups, students see themselves.
func (svc *Service) CanViewStudent(ctx context.Context, viewer user.User, studentID string) (bool, error) {
	switch {
	case viewer.IsAdmin(), viewer.ID == studentID:
		return true, nil
	case !viewer.IsTeacher():
		return false, nil
	}

	groups, err := svc.repo.QueryGroups(ctx, school.GroupFilter{Filter: school.Filter{TeacherID: viewer.ID}}, nil)
	if err != nil {
		return false, errors.Wrap(err, "querying teacher groups")
	}
	if len(groups) == 0 {
		return false, nil
	}
	groupIDs := make([]string, 0, len(groups))
	for _, grp := range groups {
		groupIDs = append(groupIDs, grp.ID)
	}
	cnt, err := svc.repo.CountEnrollments(ctx, school.EnrollmentFilter{
		StudentID: studentID,
		GroupIDs:  groupIDs,
		Status:    school.EnrollmentActive,
	})
	if err != nil {
		return false, errors.Wrap(err, "counting enrollments")
	}
	return cnt > 0, nil
}

// ScopeFilter restricts teachers to their own groups. Admins keep the filter as is.
func (svc *Service) ScopeFilter(viewer user.User, filter school.Filter) school.Filter {
	if !viewer.IsAdmin() && viewer.IsTeacher() {
		filter.TeacherID = viewer.ID
	}
	return filter
}
