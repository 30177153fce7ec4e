package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/duty-roster-bot/internal/services"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run the auto-refresh job once and purge expired update records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, func(ctx context.Context, j *services.JobService) (services.JobResult, error) {
				res, err := j.AutoRefresh(ctx)
				if err != nil {
					return res, err
				}
				_, err = j.PurgeUpdates(ctx)
				return res, err
			})
		},
	}
}

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run the duty reminder job once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, func(ctx context.Context, j *services.JobService) (services.JobResult, error) {
				return j.SendDutyReminders(ctx)
			})
		},
	}
}

// runJob bootstraps the app, runs fn and prints the result. Unlike the HTTP
// endpoints, job failures exit non-zero so cron can alert on them.
func runJob(cmd *cobra.Command, fn func(context.Context, *services.JobService) (services.JobResult, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	a, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	res, err := fn(ctx, a.jobs)
	if err != nil {
		return err
	}
	cmd.Printf("%s: triggered=%t sent=%d %s\n", res.Job, res.Triggered, res.Sent, res.Reason)
	return nil
}
