// Package services – BotService
//
// BotService turns inbound chat messages into replies. Slash commands are
// answered immediately or open a flow; any other text is routed by the
// sender's persisted conversation state (schedule replace, cover, swap) and,
// failing that, treated as an answer to a swap request addressed to them.
//
// HandleUpdate never fails: store and delivery errors are logged and the
// user gets a generic reply, so one bad update cannot stall the webhook.
package services

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/tbourn/duty-roster-bot/internal/ai"
	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/notify"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/store"
)

// BotService is the conversation state machine.
type BotService struct {
	Store       *store.Store
	Notifier    notify.Notifier
	Files       notify.FileFetcher
	AI          ai.Bridge
	Knowledge   *KnowledgeService
	Roster      domain.Roster
	GroupChatID int64
	Location    *time.Location
	Log         zerolog.Logger
}

// inbound is the sender context shared by every handler.
type inbound struct {
	chatID int64
	userID int64
	name   string
}

// foldCase builds a Caser per call; Casers are stateful and not safe to
// share between goroutines.
func foldCase(s string) string { return cases.Fold().String(s) }

// HandleUpdate processes one webhook update.
func (s *BotService) HandleUpdate(ctx context.Context, u domain.Update) {
	m := u.Message
	if m == nil {
		return
	}
	in := inbound{chatID: m.Chat.ID, userID: m.SenderID()}
	in.name = s.Roster.NameOf(in.userID)

	ctx, span := observability.Tracer("services/BotService").Start(ctx, "HandleUpdate",
		trace.WithAttributes(
			attribute.Int64("update.id", u.UpdateID),
			attribute.Int64("chat.id", in.chatID),
			attribute.Int64("user.id", in.userID),
		),
	)
	defer span.End()

	st, err := s.Store.State(ctx, in.userID)
	if err != nil {
		s.Log.Error().Err(err).Int64("user_id", in.userID).Msg("load conversation state")
		st = domain.Idle()
	}

	if st.Kind == domain.StateAwaitingTrainingFile {
		if att, ok := m.Attachment(); ok {
			s.trainFromAttachment(ctx, in, att)
			return
		}
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		s.handleCommand(ctx, in, text)
		return
	}
	s.handleReply(ctx, in, st, text)
}

// ----------------------------------------------------------------------------
// Commands

// parseCommand splits "/Swap@SomeBot Alice Tan" into "/swap", the fields
// after the command, and the raw remainder.
func parseCommand(text string) (cmd string, args []string, rest string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, ""
	}
	cmd = foldCase(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	rest = strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return cmd, fields[1:], rest
}

func (s *BotService) handleCommand(ctx context.Context, in inbound, text string) {
	cmd, args, rest := parseCommand(text)
	label := cmd

	switch cmd {
	case "/start":
		s.reply(ctx, in.chatID, msgStart)
	case "/in":
		s.setStatus(ctx, in, domain.StatusIn)
	case "/out":
		s.setStatus(ctx, in, domain.StatusOut)
	case "/status":
		st, err := s.Store.Statuses(ctx)
		if err != nil {
			s.fail(ctx, in, "list statuses", err)
			return
		}
		s.reply(ctx, in.chatID, statusBoard(st))
	case "/refresh":
		for _, name := range s.Roster.Names() {
			id, _ := s.Roster.ChatID(name)
			s.reply(ctx, id, refreshPrompt(name))
		}
		s.reply(ctx, in.chatID, msgRefreshAck)
	case "/help":
		s.reply(ctx, in.chatID, msgHelp)
	case "/view_schedule":
		sch, err := s.Store.LoadSchedule(ctx)
		if err != nil {
			s.fail(ctx, in, "load schedule", err)
			return
		}
		if sch.Len() == 0 {
			s.reply(ctx, in.chatID, msgNoSchedule)
			return
		}
		s.reply(ctx, in.chatID, fullSchedule(sch))
	case "/view_mine":
		sch, err := s.Store.LoadSchedule(ctx)
		if err != nil {
			s.fail(ctx, in, "load schedule", err)
			return
		}
		s.reply(ctx, in.chatID, mySlots(sch.SlotsOf(in.name)))
	case "/update_schedule":
		if in.chatID != s.GroupChatID && in.chatID > 0 {
			s.reply(ctx, in.chatID, msgGroupOnly)
			return
		}
		s.enter(ctx, in, domain.AwaitingSchedule(), msgSchedulePrompt)
	case "/cover_duty":
		sch, err := s.Store.LoadSchedule(ctx)
		if err != nil {
			s.fail(ctx, in, "load schedule", err)
			return
		}
		if sch.Len() == 0 {
			s.reply(ctx, in.chatID, msgNoCoverSchedule)
			return
		}
		s.enter(ctx, in, domain.AwaitingCoverChoice(), coverMenu(sch))
	case "/swap_duty":
		s.reply(ctx, in.chatID, swapNames(s.Roster.Names()))
	case "/swap":
		s.startSwap(ctx, in, strings.Join(args, " "))
	case "/askmyra":
		s.ask(ctx, in, strings.Join(args, " "))
	case "/trainmyra":
		s.train(ctx, in, rest)
	case "/cancel":
		s.cancel(ctx, in)
	default:
		label = "unknown"
		s.reply(ctx, in.chatID, msgUnknownCommand)
	}
	observability.CommandsTotal.WithLabelValues(label).Inc()
}

func (s *BotService) setStatus(ctx context.Context, in inbound, status string) {
	if err := s.Store.SetStatus(ctx, in.name, status); err != nil {
		s.fail(ctx, in, "set status", err)
		return
	}
	if err := s.Store.RecordUserID(ctx, in.name, in.userID); err != nil {
		s.Log.Error().Err(err).Str("name", in.name).Msg("record user id")
	}
	s.reply(ctx, in.chatID, statusChanged(in.name, status))
}

func (s *BotService) startSwap(ctx context.Context, in inbound, target string) {
	if target == "" {
		s.reply(ctx, in.chatID, msgSwapNeedsName)
		return
	}
	sch, err := s.Store.LoadSchedule(ctx)
	if err != nil {
		s.fail(ctx, in, "load schedule", err)
		return
	}
	slots := sch.SlotsOf(target)
	if len(slots) == 0 {
		s.reply(ctx, in.chatID, noDutiesFor(target))
		return
	}
	s.enter(ctx, in, domain.AwaitingSwapTarget(target), targetMenu(target, slots))
}

func (s *BotService) ask(ctx context.Context, in inbound, prompt string) {
	answer, err := s.Knowledge.Answer(ctx, prompt)
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		s.reply(ctx, in.chatID, msgAskEmpty)
	case errors.Is(err, ErrTooLong):
		s.reply(ctx, in.chatID, msgAskTooLong)
	case err != nil:
		s.Log.Error().Err(err).Int64("chat_id", in.chatID).Msg("askmyra")
		s.reply(ctx, in.chatID, askFailed(err))
	default:
		s.reply(ctx, in.chatID, answer)
	}
}

func (s *BotService) train(ctx context.Context, in inbound, text string) {
	if text != "" {
		s.ingest(ctx, in, "message", text)
		return
	}
	count, latest, err := s.Knowledge.Stats(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("chunk stats")
	}
	s.enter(ctx, in, domain.AwaitingTrainingFile(), trainPrompt(count, latest, s.location()))
}

func (s *BotService) cancel(ctx context.Context, in inbound) {
	st, err := s.Store.State(ctx, in.userID)
	if err != nil {
		s.fail(ctx, in, "load conversation state", err)
		return
	}
	if st.IsIdle() {
		s.reply(ctx, in.chatID, msgNothingToCancel)
		return
	}
	s.clear(ctx, in)
	observability.FlowOutcomes.WithLabelValues(flowName(st.Kind), "cancelled").Inc()
	s.reply(ctx, in.chatID, msgCancelled)
}

// ----------------------------------------------------------------------------
// Replies

func (s *BotService) handleReply(ctx context.Context, in inbound, st domain.ConversationState, text string) {
	switch st.Kind {
	case domain.StateAwaitingSchedule:
		s.replaceSchedule(ctx, in, text)
		return
	case domain.StateAwaitingCoverChoice:
		s.coverChoice(ctx, in, text)
		return
	case domain.StateAwaitingSwapTarget:
		s.swapTargetChoice(ctx, in, st, text)
		return
	case domain.StateAwaitingSwapOwnChoice:
		s.swapOwnChoice(ctx, in, st, text)
		return
	}

	if s.answerSwap(ctx, in, text) {
		return
	}
	if st.Kind == domain.StateAwaitingTrainingFile {
		s.reply(ctx, in.chatID, msgTrainNeedsFile)
	}
}

func (s *BotService) replaceSchedule(ctx context.Context, in inbound, text string) {
	sch, perr := domain.ParseSchedule(text)
	s.clear(ctx, in)
	if perr != nil {
		observability.FlowOutcomes.WithLabelValues("schedule", "invalid").Inc()
		s.reply(ctx, in.chatID, msgScheduleInvalid)
		return
	}
	if err := s.Store.SaveSchedule(ctx, sch); err != nil {
		s.fail(ctx, in, "save schedule", err)
		return
	}
	observability.FlowOutcomes.WithLabelValues("schedule", "completed").Inc()
	s.reply(ctx, in.chatID, msgScheduleUpdated)
}

func (s *BotService) coverChoice(ctx context.Context, in inbound, text string) {
	choice, ok := s.parseChoice(ctx, in, "cover", text)
	if !ok {
		return
	}
	var picked domain.Slot
	_, err := s.Store.MutateSchedule(ctx, func(sch *domain.Schedule) error {
		slots := sch.Slots()
		if choice < 1 || choice > len(slots) {
			return ErrInvalidChoice
		}
		picked = slots[choice-1]
		sch.Set(picked.Label, in.name)
		return nil
	})
	if errors.Is(err, ErrInvalidChoice) {
		observability.FlowOutcomes.WithLabelValues("cover", "invalid_choice").Inc()
		s.reply(ctx, in.chatID, msgInvalidChoice)
		return
	}
	if err != nil {
		s.fail(ctx, in, "cover duty", err)
		return
	}

	s.clear(ctx, in)
	observability.FlowOutcomes.WithLabelValues("cover", "completed").Inc()
	msg := coverDone(picked.Label, in.name, picked.Assignee)
	s.reply(ctx, in.chatID, msg)
	s.reply(ctx, s.GroupChatID, msg)
}

func (s *BotService) swapTargetChoice(ctx context.Context, in inbound, st domain.ConversationState, text string) {
	sch, err := s.Store.LoadSchedule(ctx)
	if err != nil {
		s.fail(ctx, in, "load schedule", err)
		return
	}
	choice, ok := s.parseChoice(ctx, in, "swap", text)
	if !ok {
		return
	}
	targetSlots := sch.SlotsOf(st.Target)
	if choice < 1 || choice > len(targetSlots) {
		observability.FlowOutcomes.WithLabelValues("swap", "invalid_choice").Inc()
		s.reply(ctx, in.chatID, msgInvalidChoice)
		return
	}

	own := sch.SlotsOf(in.name)
	if len(own) == 0 {
		s.clear(ctx, in)
		observability.FlowOutcomes.WithLabelValues("swap", "no_own_duties").Inc()
		s.reply(ctx, in.chatID, msgNoDutiesToSwap)
		return
	}

	next := domain.AwaitingSwapOwnChoice(st.Target, targetSlots[choice-1])
	s.enter(ctx, in, next, ownMenu(own))
}

func (s *BotService) swapOwnChoice(ctx context.Context, in inbound, st domain.ConversationState, text string) {
	sch, err := s.Store.LoadSchedule(ctx)
	if err != nil {
		s.fail(ctx, in, "load schedule", err)
		return
	}
	choice, ok := s.parseChoice(ctx, in, "swap", text)
	if !ok {
		return
	}
	own := sch.SlotsOf(in.name)
	if choice < 1 || choice > len(own) {
		observability.FlowOutcomes.WithLabelValues("swap", "invalid_choice").Inc()
		s.reply(ctx, in.chatID, msgInvalidChoice)
		return
	}
	targetChat, ok := s.Roster.ChatID(st.Target)
	if !ok {
		s.reply(ctx, in.chatID, msgNoTargetChat)
		return
	}

	req := domain.SwapRequest{
		Requester:       in.name,
		Target:          st.Target,
		RequesterSlot:   own[choice-1],
		TargetSlot:      st.TargetSlot,
		RequesterChatID: in.chatID,
		TargetChatID:    targetChat,
	}
	if err := s.Store.PutSwapRequest(ctx, req); err != nil {
		s.fail(ctx, in, "store swap request", err)
		return
	}
	observability.FlowOutcomes.WithLabelValues("swap", "requested").Inc()
	s.reply(ctx, targetChat, swapProposal(req))
	s.reply(ctx, in.chatID, swapSent(st.Target))
	s.clear(ctx, in)
}

// answerSwap resolves a pending swap request addressed to the sender. It
// reports whether the message was consumed.
func (s *BotService) answerSwap(ctx context.Context, in inbound, text string) bool {
	req, ok, err := s.Store.SwapRequest(ctx, in.userID)
	if err != nil {
		s.Log.Error().Err(err).Int64("user_id", in.userID).Msg("load swap request")
		return false
	}
	if !ok {
		return false
	}

	var accept bool
	switch foldCase(strings.TrimSpace(text)) {
	case "yes", "y":
		accept = true
	case "no", "n":
	default:
		// Anything else leaves the request open.
		return true
	}

	if accept {
		_, err := s.Store.MutateSchedule(ctx, func(sch *domain.Schedule) error {
			sch.Set(req.RequesterSlot, req.Target)
			sch.Set(req.TargetSlot, req.Requester)
			return nil
		})
		if err != nil {
			s.fail(ctx, in, "apply swap", err)
			return true
		}
		observability.FlowOutcomes.WithLabelValues("swap", "accepted").Inc()
		msg := swapDone(req)
		s.reply(ctx, in.chatID, msg)
		s.reply(ctx, req.RequesterChatID, msg)
		s.reply(ctx, s.GroupChatID, msg)
	} else {
		observability.FlowOutcomes.WithLabelValues("swap", "declined").Inc()
		s.reply(ctx, in.chatID, msgSwapDeclinedSelf)
		s.reply(ctx, req.RequesterChatID, swapDeclined(req.Target))
	}

	if err := s.Store.DeleteSwapRequest(ctx, in.userID); err != nil {
		s.Log.Error().Err(err).Int64("user_id", in.userID).Msg("delete swap request")
	}
	return true
}

// ----------------------------------------------------------------------------
// Training

func (s *BotService) trainFromAttachment(ctx context.Context, in inbound, att domain.Attachment) {
	defer s.clear(ctx, in)

	data, err := s.Files.Fetch(ctx, att.FileID)
	if err != nil {
		s.Log.Error().Err(err).Str("file_id", att.FileID).Msg("fetch training file")
		observability.FlowOutcomes.WithLabelValues("training", "failed").Inc()
		s.reply(ctx, in.chatID, trainFailed(err))
		return
	}
	text, err := s.AI.ExtractText(ctx, data, mediaTypeOf(att))
	if err != nil {
		s.Log.Error().Err(err).Str("file", att.FileName).Msg("extract training text")
		observability.FlowOutcomes.WithLabelValues("training", "failed").Inc()
		s.reply(ctx, in.chatID, trainFailed(err))
		return
	}
	s.ingest(ctx, in, att.FileName, text)
}

func (s *BotService) ingest(ctx context.Context, in inbound, source, text string) {
	n, err := s.Knowledge.Ingest(ctx, source, in.name, text)
	if err != nil {
		s.Log.Error().Err(err).Int("stored", n).Str("source", source).Msg("ingest training text")
		observability.FlowOutcomes.WithLabelValues("training", "failed").Inc()
		s.reply(ctx, in.chatID, trainFailed(err))
		return
	}
	total, _, err := s.Knowledge.Stats(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("chunk stats")
		total = int64(n)
	}
	observability.FlowOutcomes.WithLabelValues("training", "completed").Inc()
	s.reply(ctx, in.chatID, trainDone(n, source, total))
}

// mediaTypeOf prefers the declared MIME type and falls back to the file
// extension. Telegram often reports markdown as application/octet-stream.
func mediaTypeOf(att domain.Attachment) string {
	if att.MimeType != "" && att.MimeType != "application/octet-stream" {
		return att.MimeType
	}
	ext := strings.ToLower(filepath.Ext(att.FileName))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case "":
		return att.MimeType
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return att.MimeType
}

// ----------------------------------------------------------------------------
// Helpers

// parseChoice reads a 1-based number, replying with an error when the text
// is not one. Flow state is left untouched.
func (s *BotService) parseChoice(ctx context.Context, in inbound, flow, text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		observability.FlowOutcomes.WithLabelValues(flow, "not_a_number").Inc()
		s.reply(ctx, in.chatID, msgNotANumber)
		return 0, false
	}
	return n, true
}

func (s *BotService) enter(ctx context.Context, in inbound, st domain.ConversationState, prompt string) {
	if err := s.Store.SetState(ctx, in.userID, st); err != nil {
		s.fail(ctx, in, "set conversation state", err)
		return
	}
	s.reply(ctx, in.chatID, prompt)
}

func (s *BotService) clear(ctx context.Context, in inbound) {
	if err := s.Store.ClearState(ctx, in.userID); err != nil {
		s.Log.Error().Err(err).Int64("user_id", in.userID).Msg("clear conversation state")
	}
}

// reply sends text and logs delivery failures without surfacing them.
func (s *BotService) reply(ctx context.Context, chatID int64, text string) {
	if err := s.Notifier.Send(ctx, chatID, text); err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

func (s *BotService) fail(ctx context.Context, in inbound, what string, err error) {
	s.Log.Error().Err(err).Int64("chat_id", in.chatID).Int64("user_id", in.userID).Msg(what)
	s.reply(ctx, in.chatID, msgSomethingWrong)
}

func (s *BotService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func flowName(k domain.StateKind) string {
	switch k {
	case domain.StateAwaitingSchedule:
		return "schedule"
	case domain.StateAwaitingCoverChoice:
		return "cover"
	case domain.StateAwaitingSwapTarget, domain.StateAwaitingSwapOwnChoice:
		return "swap"
	case domain.StateAwaitingTrainingFile:
		return "training"
	}
	return "none"
}
