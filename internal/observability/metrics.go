package observability

import "github.com/prometheus/client_golang/prometheus"

// Bot-level collectors. HTTP traffic is measured separately by the
// middleware package; these count what the bot did with it.
var (
	// CommandsTotal counts slash commands by normalized name ("/help",
	// "/swap", or "unknown").
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_commands_total",
			Help: "Slash commands received, by command.",
		},
		[]string{"command"},
	)

	// FlowOutcomes counts multi-step flow results, e.g.
	// flow="cover", outcome="completed" or outcome="invalid_choice".
	FlowOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_flow_outcomes_total",
			Help: "Conversation flow outcomes, by flow and outcome.",
		},
		[]string{"flow", "outcome"},
	)

	// NotificationsTotal counts outbound messages by result
	// (sent|plain_fallback|failed).
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_notifications_total",
			Help: "Outbound chat messages, by result.",
		},
		[]string{"result"},
	)

	// JobRuns counts trigger job invocations by job and whether they acted.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterbot_job_runs_total",
			Help: "Trigger job runs, by job and triggered flag.",
		},
		[]string{"job", "triggered"},
	)

	// DuplicateUpdates counts webhook redeliveries skipped by dedupe.
	DuplicateUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rosterbot_duplicate_updates_total",
			Help: "Webhook updates skipped because their update_id was already processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal, FlowOutcomes, NotificationsTotal, JobRuns, DuplicateUpdates)
}
