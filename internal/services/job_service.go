// Package services – JobService
//
// JobService implements the two externally triggered jobs. Neither schedules
// itself: an outside cron hits /refresh and /reminder (or runs the CLI
// subcommands), and each job decides from the clock and stored state whether
// to act. Both are safe to invoke repeatedly.
package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/notify"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/schedule"
	"github.com/tbourn/duty-roster-bot/internal/store"
)

// Job names used in results and metrics.
const (
	JobAutoRefresh = "auto_refresh"
	JobReminder    = "duty_reminder"
)

// JobResult reports what a job run did.
type JobResult struct {
	Job       string `json:"job"`
	Triggered bool   `json:"triggered"`
	Sent      int    `json:"sent"`
	Label     string `json:"label,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// JobService runs the refresh and reminder jobs.
type JobService struct {
	Store       *store.Store
	Notifier    notify.Notifier
	Engine      *schedule.Engine
	Roster      domain.Roster
	GroupChatID int64
	Log         zerolog.Logger

	// RequireReminderWindow additionally gates reminders on the 21:00 window.
	RequireReminderWindow bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (j *JobService) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// AutoRefresh asks every roster member for their status when the refresh
// predicate holds.
func (j *JobService) AutoRefresh(ctx context.Context) (JobResult, error) {
	ctx, span := observability.Tracer("services/JobService").Start(ctx, "AutoRefresh")
	defer span.End()

	res := JobResult{Job: JobAutoRefresh}
	now := j.now()
	sch, err := j.Store.LoadSchedule(ctx)
	if err != nil {
		return res, err
	}

	j.Log.Debug().Interface("flags", j.Engine.Flags(sch, now)).Msg("auto refresh check")
	if !j.Engine.ShouldTriggerRefresh(sch, now) {
		res.Reason = "outside refresh window"
		j.record(res)
		return res, nil
	}

	res.Triggered = true
	for _, name := range j.Roster.Names() {
		id, _ := j.Roster.ChatID(name)
		if err := j.Notifier.Send(ctx, id, autoRefreshPrompt(name)); err != nil {
			j.Log.Error().Err(err).Str("name", name).Msg("auto refresh prompt")
			continue
		}
		res.Sent++
	}
	span.SetAttributes(attribute.Int("job.sent", res.Sent))
	j.record(res)
	return res, nil
}

// SendDutyReminders notifies tomorrow's assignees once per date label.
func (j *JobService) SendDutyReminders(ctx context.Context) (JobResult, error) {
	ctx, span := observability.Tracer("services/JobService").Start(ctx, "SendDutyReminders")
	defer span.End()

	now := j.now()
	label := j.Engine.TomorrowLabel(now)
	res := JobResult{Job: JobReminder, Label: label}
	span.SetAttributes(attribute.String("job.label", label))

	marker, ok, err := j.Store.ReminderMarker(ctx)
	if err != nil {
		return res, err
	}
	if ok && marker == label {
		res.Reason = "already sent"
		j.record(res)
		return res, nil
	}
	if j.RequireReminderWindow && !j.Engine.ShouldSendReminder(now) {
		res.Reason = "outside reminder window"
		j.record(res)
		return res, nil
	}

	sch, err := j.Store.LoadSchedule(ctx)
	if err != nil {
		return res, err
	}
	if sch.Len() == 0 {
		res.Reason = "no schedule"
		j.record(res)
		return res, nil
	}

	for _, sl := range sch.Slots() {
		if !strings.HasPrefix(sl.Label, label) {
			continue
		}
		id, ok := j.Roster.ChatID(sl.Assignee)
		if !ok {
			j.Log.Info().Str("assignee", sl.Assignee).Str("slot", sl.Label).Msg("no chat id; reminder skipped")
			continue
		}
		if err := j.Notifier.Send(ctx, id, reminderText(sl.Assignee, sl.Label)); err != nil {
			j.Log.Error().Err(err).Str("assignee", sl.Assignee).Msg("send reminder")
			continue
		}
		res.Sent++
	}

	if res.Sent == 0 {
		res.Reason = "no duties tomorrow"
		j.record(res)
		return res, nil
	}

	res.Triggered = true
	if err := j.Store.SetReminderMarker(ctx, label); err != nil {
		j.Log.Error().Err(err).Str("label", label).Msg("set reminder marker")
	}
	if err := j.Notifier.Send(ctx, j.GroupChatID, reminderSummary(label)); err != nil {
		j.Log.Error().Err(err).Msg("send reminder summary")
	}
	j.record(res)
	return res, nil
}

// PurgeUpdates drops expired webhook dedupe records.
func (j *JobService) PurgeUpdates(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredUpdates(ctx, j.Store.DB(), j.now())
}

func (j *JobService) record(res JobResult) {
	observability.JobRuns.WithLabelValues(res.Job, strconv.FormatBool(res.Triggered)).Inc()
	j.Log.Info().
		Str("job", res.Job).
		Bool("triggered", res.Triggered).
		Int("sent", res.Sent).
		Str("label", res.Label).
		Str("reason", res.Reason).
		Msg("job run")
}
