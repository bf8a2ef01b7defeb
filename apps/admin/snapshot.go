package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
)

// snapshot stores the current institution metrics of the filter, e.g. from a cron job.
func (cli *commandLine) snapshot(filter school.Filter, interval string) error {
	var iv stats.Interval
	if interval != "" {
		var err error
		if iv, err = stats.ParseInterval(interval); err != nil {
			return err
		}
	}

	snap, err := cli.dashboard.TakeSnapshot(context.Background(), filter, iv, "")
	if err != nil {
		return errors.Wrap(err, "taking snapshot")
	}
	cli.logger.Info(fmt.Sprintf(
		"snapshot %s taken (%s): %d students, %d teachers, %d active groups",
		snap.ID, snap.Key, snap.Metrics.Counts.Students, snap.Metrics.Counts.Teachers, snap.Metrics.Counts.ActiveGroups,
	))
	return nil
}
