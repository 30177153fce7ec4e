package handlers

import (
	"context"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/services"
)

//
// Service contracts (context-aware)
//

// UpdateHandler consumes one decoded Telegram update. Replies are sent by the
// implementation; nothing is returned to the transport.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u domain.Update)
}

// JobRunner runs the scheduled jobs triggered by an external cron.
type JobRunner interface {
	AutoRefresh(ctx context.Context) (services.JobResult, error)
	SendDutyReminders(ctx context.Context) (services.JobResult, error)
	PurgeUpdates(ctx context.Context) (int64, error)
}

// ClaimFunc records an update id as processed. It returns repo.ErrDuplicate
// when the id was already handled within the dedupe window.
type ClaimFunc func(ctx context.Context, updateID, chatID int64) error

//
// Handler wiring
//

// Handlers groups the webhook and job endpoints.
type Handlers struct {
	bot   UpdateHandler
	jobs  JobRunner
	claim ClaimFunc
}

// New constructs Handlers. claim may be nil to disable redelivery dedupe.
func New(bot UpdateHandler, jobs JobRunner, claim ClaimFunc) *Handlers {
	return &Handlers{bot: bot, jobs: jobs, claim: claim}
}
