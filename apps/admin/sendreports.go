package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

func (cli *commandLine) sendReports(studentIDs []string) error {
	sent, err := cli.dashboard.SendGradeReports(context.Background(), studentIDs...)
	if err != nil {
		return errors.Wrap(err, "sending grade reports")
	}
	cli.logger.Info(fmt.Sprintf("%d grade reports sent", sent))
	return nil
}
