package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
)

// TakeSnapshot computes fresh metrics (bypassing the cache) and stores them for historical comparison.
func (svc *Service) TakeSnapshot(ctx context.Context, filter school.Filter, interval stats.Interval, takenBy string) (Snapshot, error) {
	if svc.snapshots == nil {
		return Snapshot{}, ErrSnapshotsDisabled
	}
	if interval == "" {
		interval = svc.interval
	}

	metrics, err := svc.ComputeMetrics(ctx, filter, interval)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := svc.snapshots.SaveSnapshot(ctx, Snapshot{
		Key:     Key(filter, interval),
		TakenAt: metrics.GeneratedAt,
		TakenBy: takenBy,
		Metrics: metrics,
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "saving snapshot")
	}
	return snap, nil
}

func (svc *Service) QuerySnapshots(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error) {
	if svc.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	if filter.Interval == "" {
		filter.Interval = svc.interval
	}
	snaps, err := svc.snapshots.QuerySnapshots(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshots")
	}
	return snaps, nil
}
