package dashboard

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
)

var (
	// errors
	ErrCacheMiss          = errors.New("cache miss")
	ErrSnapshotsDisabled  = errors.New("metrics snapshots are not configured")
	ErrReportsUnavailable = errors.New("grade reports are not configured")
)

type (
	// Users is the part of user.Service the dashboard relies on.
	Users interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
		Count(ctx context.Context, filter *user.QueryFilter) (int, error)
	}

	// Cache stores computed institution metrics under a key. GetMetrics returns ErrCacheMiss for unknown keys.
	Cache interface {
		GetMetrics(ctx context.Context, key string) (stats.InstitutionMetrics, error)
		SetMetrics(ctx context.Context, key string, metrics stats.InstitutionMetrics) error
		InvalidateMetrics(ctx context.Context) error
	}

	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
		QuerySnapshots(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error)
	}

	// Recorder observes aggregation timings & fetch failures.
	Recorder interface {
		ObserveAggregation(name string, d time.Duration)
		FetchFailed(source string)
		CacheLookup(hit bool)
	}

	// ReportWriter renders a student's grade summary as a spreadsheet.
	ReportWriter interface {
		WriteStudentGrades(w io.Writer, student user.User, summary stats.StudentSummary) error
	}

	// Deps holds the dashboard collaborators, only Repo, Users & Logger are required.
	Deps struct {
		Repo      school.Repository
		Users     Users
		Logger    core.Logger
		Cache     Cache
		Snapshots SnapshotStore
		Recorder  Recorder
		Mailer    core.EmailService
		Reports   ReportWriter
	}

	Snapshot struct {
		ID      string                   `json:"id" bson:"_id,omitempty"`
		Key     string                   `json:"key" bson:"key"`
		TakenAt time.Time                `json:"taken_at" bson:"taken_at"`
		Metrics stats.InstitutionMetrics `json:"metrics" bson:"metrics"`
		TakenBy string                   `json:"taken_by,omitempty" bson:"taken_by,omitempty"`
	}

	// SnapshotFilter selects snapshots of one filter/interval key within [From, To], newest first.
	SnapshotFilter struct {
		Filter   school.Filter
		Interval stats.Interval
		From     time.Time `query:"from"`
		To       time.Time `query:"to"`
		Limit    int       `query:"limit"`
	}
)

// Key identifies a filter & interval pair in caches & snapshot stores.
func Key(filter school.Filter, interval stats.Interval) string {
	return filter.Key() + "&i=" + string(interval)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAggregation(string, time.Duration) {}
func (nopRecorder) FetchFailed(string)                       {}
func (nopRecorder) CacheLookup(bool)                         {}
