package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/store"
)

// Fixed replies.
const (
	msgStart            = "👋 RC4 RA Bot is ready!"
	msgNoStatus         = "No updates yet."
	msgRefreshAck       = "🔄 Asking all members to update..."
	msgNoSchedule       = "No duties scheduled yet."
	msgNoOwnSlots       = "You have no assigned duties."
	msgGroupOnly        = "❌ Only allowed in group chat."
	msgSchedulePrompt   = "📤 Please send the full duty schedule as JSON.\n\nExample:\n```json\n{\"Jul 24 (Thu) PM\": \"Alycia\"}```"
	msgScheduleUpdated  = "✅ Duty schedule updated successfully!"
	msgScheduleInvalid  = "❌ Invalid JSON. Please try again."
	msgNoCoverSchedule  = "❌ No duty schedule available."
	msgSwapNeedsName    = "❌ Please specify a name. Use /swap_duty to view names."
	msgInvalidChoice    = "❌ Invalid choice."
	msgNotANumber       = "❌ Please enter a valid number."
	msgNoDutiesToSwap   = "❌ You have no duties to swap."
	msgNoTargetChat     = "❌ Could not find target user chat ID."
	msgSwapDeclinedSelf = "✅ You declined the swap request."
	msgUnknownCommand   = "❌ Unknown command. Type /help to see available options."
	msgAskEmpty         = "Eh? What do you want to ask? Don't waste my time. -MG Myra"
	msgAskTooLong       = "Oi. Yappa yappa yappa. Don't waste my time. Can TLDR or not. -MG Myra"
	msgCancelled        = "👌 Cancelled."
	msgNothingToCancel  = "Nothing to cancel."
	msgTrainNeedsFile   = "📎 Send a document or photo for me to learn from, or /cancel."
	msgSomethingWrong   = "⚠️ Something went wrong. Please try again later."
	choiceFooter        = "\n📝 Reply with the number of your choice."

	msgHelp = `🤖 *Bot Commands:*

• ` + "`/in`" + ` – Mark yourself IN ✅
• ` + "`/out`" + ` – Mark yourself OUT ❌
• ` + "`/status`" + ` – Show everyone's status
• ` + "`/refresh`" + ` – Ask all users to update
• ` + "`/view_schedule`" + ` – View full duty schedule
• ` + "`/view_mine`" + ` – View your assigned slots
• ` + "`/update_schedule`" + ` – Replace schedule (admin)
• ` + "`/swap_duty`" + ` – Start duty swap request
• ` + "`/cover_duty`" + ` – Cover someone's duty slot
• ` + "`/askmyra <question>`" + ` – Ask MG Myra
• ` + "`/trainmyra [text]`" + ` – Teach MG Myra from text or a file
• ` + "`/cancel`" + ` – Abandon the current flow
• ` + "`/help`" + ` – Show this list`
)

func statusChanged(name, status string) string {
	if status == domain.StatusIn {
		return fmt.Sprintf("%s is now IN ✅", name)
	}
	return fmt.Sprintf("%s is now OUT ❌", name)
}

func statusBoard(st []store.Status) string {
	if len(st) == 0 {
		return msgNoStatus
	}
	lines := make([]string, len(st))
	for i, s := range st {
		lines[i] = s.Name + ": " + s.Value
	}
	return "📋 *Current Status:*\n" + strings.Join(lines, "\n")
}

func refreshPrompt(name string) string {
	return fmt.Sprintf("👋 Hi %s, please reply /in or /out to update your status.", name)
}

func autoRefreshPrompt(name string) string {
	return fmt.Sprintf("👋 Hi %s, please reply /in or /out to update your status. (Auto-sent for duty RA)", name)
}

func fullSchedule(sch domain.Schedule) string {
	var b strings.Builder
	b.WriteString("*📅 Full Duty Schedule:*")
	for _, sl := range sch.Slots() {
		b.WriteString("\n" + sl.Label + ": " + sl.Assignee)
	}
	return b.String()
}

func mySlots(slots []string) string {
	if len(slots) == 0 {
		return msgNoOwnSlots
	}
	return "*👤 Your Duties:*\n" + strings.Join(slots, "\n")
}

func coverMenu(sch domain.Schedule) string {
	var b strings.Builder
	b.WriteString("📋 *All Duty Slots - Choose one to cover:*\n\n")
	for i, sl := range sch.Slots() {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, sl.Label, sl.Assignee)
	}
	b.WriteString(choiceFooter)
	return b.String()
}

func swapNames(names []string) string {
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("• %s → type `/swap %s`", n, n)
	}
	return "🔁 *Who do you want to swap with?*\n" + strings.Join(lines, "\n")
}

func numbered(header string, slots []string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString(choiceFooter)
	return b.String()
}

func targetMenu(target string, slots []string) string {
	return numbered(fmt.Sprintf("📋 *%s's Duties - Choose one to swap:*\n\n", target), slots)
}

func ownMenu(slots []string) string {
	return numbered("🔄 *Your Duties - Choose which to swap:*\n", slots)
}

func noDutiesFor(target string) string {
	return fmt.Sprintf("❌ %s has no assigned duties.", target)
}

func coverDone(slot, name, original string) string {
	return fmt.Sprintf("✅ *Duty Cover Completed!*\n\n📅 %s: %s (covering for %s)", slot, name, original)
}

func swapProposal(req domain.SwapRequest) string {
	return fmt.Sprintf("🔄 *Duty Swap Request*\n\n👤 From: %s\n📅 They want to swap:\n   • Your: %s\n   • Their: %s\n\nReply with *Yes* or *No*",
		req.Requester, req.TargetSlot, req.RequesterSlot)
}

func swapSent(target string) string {
	return fmt.Sprintf("📨 Swap request sent to %s!", target)
}

func swapDone(req domain.SwapRequest) string {
	return fmt.Sprintf("✅ *Duty Swap Completed!*\n\n📅 %s: %s\n📅 %s: %s",
		req.RequesterSlot, req.Target, req.TargetSlot, req.Requester)
}

func swapDeclined(target string) string {
	return fmt.Sprintf("❌ %s declined the swap request.", target)
}

func reminderText(name, slot string) string {
	return fmt.Sprintf("👋 Hi %s, you have a duty scheduled for *%s* tomorrow. Please be prepared!", name, slot)
}

func reminderSummary(label string) string {
	return fmt.Sprintf("📢 Reminders sent for duties on %s.", label)
}

func askFailed(err error) string {
	return fmt.Sprintf("😵 MG Myra cannot answer right now: %v", err)
}

func trainFailed(err error) string {
	return fmt.Sprintf("❌ Training failed: %v", err)
}

func trainDone(n int, source string, total int64) string {
	return fmt.Sprintf("🧠 Learned %d chunk(s) from %s. Knowledge base now holds %d chunk(s).", n, source, total)
}

func trainPrompt(count int64, latest *time.Time, loc *time.Location) string {
	if count == 0 || latest == nil {
		return msgTrainNeedsFile + "\nKnowledge base is empty."
	}
	return fmt.Sprintf("%s\nKnowledge base: %d chunk(s), last updated %s.",
		msgTrainNeedsFile, count, latest.In(loc).Format("Jan 02 15:04"))
}
