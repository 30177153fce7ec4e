// Webhook HTTP handler.
//
// Telegram POSTs every update to /webhook and redelivers it when the response
// is slow or non-2xx. The handler therefore answers 200 for anything it could
// decode, including updates the bot ignores, and skips update ids it has
// already processed.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/http/middleware"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/repo"
)

// WebhookResponse is the acknowledgement returned to Telegram.
type WebhookResponse struct {
	OK bool `json:"ok" example:"true"`
}

// Webhook godoc
// @Summary      Receive a Telegram update
// @Description  Decodes the update and runs the bot's command and conversation handling. Redelivered update ids are acknowledged without side effects.
// @Tags         telegram
// @Accept       json
// @Produce      json
// @Param        X-Telegram-Bot-Api-Secret-Token  header  string         false  "Secret registered with setWebhook"
// @Param        update                           body    domain.Update  true   "Telegram update"
// @Success      200  {object}  WebhookResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	var u domain.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidUpdate, "malformed update payload")
		return
	}

	lg := middleware.LoggerFrom(c)
	// Replies must still go out if Telegram drops the connection.
	ctx := context.WithoutCancel(c.Request.Context())

	if h.claim != nil && u.UpdateID != 0 {
		var chatID int64
		if u.Message != nil {
			chatID = u.Message.Chat.ID
		}
		if err := h.claim(ctx, u.UpdateID, chatID); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				observability.DuplicateUpdates.Inc()
				lg.Info().Int64("update_id", u.UpdateID).Msg("duplicate update skipped")
				ok(c, http.StatusOK, WebhookResponse{OK: true})
				return
			}
			// A broken dedupe table must not silence the bot.
			lg.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("update dedupe failed")
		}
	}

	h.bot.HandleUpdate(ctx, u)
	ok(c, http.StatusOK, WebhookResponse{OK: true})
}
