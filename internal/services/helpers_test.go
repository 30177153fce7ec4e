package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/schedule"
	"github.com/tbourn/duty-roster-bot/internal/store"
)

const (
	aliceID = int64(111)
	bobID   = int64(222)
	groupID = int64(-100)
)

var sgt = time.FixedZone("SGT", 8*3600)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return store.New(db, zerolog.Nop())
}

func testRoster() domain.Roster {
	return domain.NewRoster(map[string]int64{"Alice": aliceID, "Bob": bobID})
}

// sent is one recorded outbound message.
type sent struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeNotifier) to(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeNotifier) last(chatID int64) string {
	all := f.to(chatID)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

type fakeFiles struct {
	data map[string][]byte
}

func (f fakeFiles) Fetch(_ context.Context, id string) ([]byte, error) {
	b, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("file %s not found", id)
	}
	return b, nil
}

// fakeBridge embeds by counting a few keywords, so related texts have a
// positive cosine similarity.
type fakeBridge struct {
	mu        sync.Mutex
	prompts   []string
	answer    string
	embedErr  error
	failAfter int // Embed fails once this many calls succeeded; 0 disables
	calls     int
}

var vocab = []string{"duty", "swap", "quiet", "laundry", "fire"}

func (f *fakeBridge) Complete(_ context.Context, persona, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

func (f *fakeBridge) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, fmt.Errorf("quota exceeded")
	}
	f.calls++
	low := strings.ToLower(text)
	v := make([]float32, len(vocab))
	for i, w := range vocab {
		v[i] = float32(strings.Count(low, w))
	}
	return v, nil
}

func (f *fakeBridge) ExtractText(_ context.Context, data []byte, mt string) (string, error) {
	if !strings.HasPrefix(mt, "text/") {
		return "", fmt.Errorf("unsupported file type: %s", mt)
	}
	return string(data), nil
}

func (f *fakeBridge) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type botFixture struct {
	svc   *BotService
	store *store.Store
	out   *fakeNotifier
	ai    *fakeBridge
}

func newBot(t *testing.T) *botFixture {
	t.Helper()
	st := newTestStore(t)
	out := &fakeNotifier{}
	br := &fakeBridge{answer: "Why you like that one ah?"}
	kb := NewKnowledgeService(st.DB(), br, "", zerolog.Nop())
	svc := &BotService{
		Store:       st,
		Notifier:    out,
		Files:       fakeFiles{data: map[string][]byte{"doc-1": []byte("Laundry room closes at midnight.")}},
		AI:          br,
		Knowledge:   kb,
		Roster:      testRoster(),
		GroupChatID: groupID,
		Location:    sgt,
		Log:         zerolog.Nop(),
	}
	return &botFixture{svc: svc, store: st, out: out, ai: br}
}

// say delivers text from userID in their private chat.
func (f *botFixture) say(userID int64, text string) {
	f.sayIn(userID, userID, text)
}

func (f *botFixture) sayIn(chatID, userID int64, text string) {
	f.svc.HandleUpdate(context.Background(), domain.Update{
		UpdateID: time.Now().UnixNano(),
		Message: &domain.Message{
			Chat: domain.Chat{ID: chatID},
			From: &domain.User{ID: userID},
			Text: text,
		},
	})
}

func (f *botFixture) seed(t *testing.T, slots ...domain.Slot) {
	t.Helper()
	require.NoError(t, f.store.SaveSchedule(context.Background(), domain.NewSchedule(slots...)))
}

func (f *botFixture) schedule(t *testing.T) domain.Schedule {
	t.Helper()
	sch, err := f.store.LoadSchedule(context.Background())
	require.NoError(t, err)
	return sch
}

func (f *botFixture) state(t *testing.T, userID int64) domain.ConversationState {
	t.Helper()
	st, err := f.store.State(context.Background(), userID)
	require.NoError(t, err)
	return st
}

func newTestEngine(t *testing.T) *schedule.Engine {
	t.Helper()
	e, err := schedule.NewEngine(sgt, []schedule.HolidayRange{
		{Start: "2025-01-01", End: "2025-08-03"},
	}, "FREQ=WEEKLY;BYDAY=FR,SA,SU")
	require.NoError(t, err)
	return e
}
