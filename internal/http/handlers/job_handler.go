package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/duty-roster-bot/internal/http/middleware"
)

// Refresh godoc
// @Summary      Run the auto-refresh job
// @Description  Prompts members to update the schedule when the weekend window opens, then purges expired update records. Always answers OK; the outcome is logged.
// @Tags         jobs
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Failure      429  {object}  ErrorResponse
// @Router       /refresh [get]
func (h *Handlers) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	if _, err := h.jobs.AutoRefresh(ctx); err != nil {
		lg.Error().Err(err).Msg("auto refresh failed")
	}
	if n, err := h.jobs.PurgeUpdates(ctx); err != nil {
		lg.Warn().Err(err).Msg("purge processed updates failed")
	} else if n > 0 {
		lg.Debug().Int64("purged", n).Msg("expired update records purged")
	}
	okText(c, "OK")
}

// Reminder godoc
// @Summary      Run the duty reminder job
// @Description  Sends tomorrow's duty reminders once per day. Always answers OK; the outcome is logged.
// @Tags         jobs
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Failure      429  {object}  ErrorResponse
// @Router       /reminder [get]
func (h *Handlers) Reminder(c *gin.Context) {
	if _, err := h.jobs.SendDutyReminders(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("duty reminders failed")
	}
	okText(c, "OK")
}
