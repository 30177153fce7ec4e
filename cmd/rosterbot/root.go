package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/duty-roster-bot/internal/ai"
	"github.com/tbourn/duty-roster-bot/internal/config"
	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/notify"
	"github.com/tbourn/duty-roster-bot/internal/observability"
	"github.com/tbourn/duty-roster-bot/internal/repo"
	"github.com/tbourn/duty-roster-bot/internal/schedule"
	"github.com/tbourn/duty-roster-bot/internal/services"
	"github.com/tbourn/duty-roster-bot/internal/store"
	"github.com/tbourn/duty-roster-bot/internal/sysutil"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rosterbot",
		Short:         "Household duty roster Telegram bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newRemindCmd())
	return cmd
}

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg  config.Config
	log  zerolog.Logger
	db   *gorm.DB
	bot  *services.BotService
	jobs *services.JobService

	shutdownOTel func(context.Context) error
}

// bootstrap loads configuration and builds the storage, delivery, AI and
// service layers.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*app, error) {
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		// Real environment wins over the file.
		_ = godotenv.Load(path)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	lg := sysutil.ConfigureLogger(nil, cfg.LogLevel, cfg.LogPretty)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	dsn := cfg.DB.Path
	if cfg.DB.Driver == repo.DriverPostgres {
		dsn = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var (
		notifier notify.Notifier
		files    notify.FileFetcher
	)
	if cfg.Telegram.Token == "" {
		lg.Warn().Msg("BOT_TOKEN not set; outbound messages are only logged")
		l := notify.Log{L: lg.With().Str("component", "notify").Logger()}
		notifier, files = l, l
	} else {
		tg := notify.NewTelegram(notify.TelegramOptions{
			BaseURL:      cfg.Telegram.APIURL,
			Token:        cfg.Telegram.Token,
			Timeout:      cfg.Telegram.Timeout,
			SendRPS:      cfg.Telegram.SendRPS,
			MaxRetries:   cfg.Telegram.MaxRetries,
			MaxFileBytes: cfg.Telegram.MaxFileBytes,
			Logger:       lg.With().Str("component", "telegram").Logger(),
		})
		notifier, files = tg, tg
	}

	var bridge ai.Bridge = ai.Disabled{}
	if cfg.AI.APIKey != "" {
		bridge = ai.NewOpenAI(ai.OpenAIOptions{
			BaseURL:        cfg.AI.BaseURL,
			APIKey:         cfg.AI.APIKey,
			Model:          cfg.AI.Model,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			Timeout:        cfg.AI.Timeout,
		})
	} else {
		lg.Info().Msg("OPENAI_API_KEY not set; /askmyra and /trainmyra are disabled")
	}

	holidays := make([]schedule.HolidayRange, 0, len(cfg.Schedule.Holidays))
	for _, h := range cfg.Schedule.Holidays {
		holidays = append(holidays, schedule.HolidayRange{Start: h.Start, End: h.End})
	}
	engine, err := schedule.NewEngine(cfg.Location(), holidays, cfg.Schedule.WeekendRRule)
	if err != nil {
		return nil, fmt.Errorf("schedule engine: %w", err)
	}

	roster := domain.NewRoster(cfg.Members)
	if roster.Len() == 0 {
		lg.Warn().Msg("roster is empty; set FRIEND_TELEGRAM_MAPPINGS or ROSTER_FILE")
	}
	st := store.New(db, lg.With().Str("component", "store").Logger())

	knowledge := services.NewKnowledgeService(db, bridge,
		sysutil.FirstNonEmpty(cfg.AI.Persona, ai.DefaultPersona),
		lg.With().Str("component", "knowledge").Logger())
	knowledge.TopK = cfg.AI.TopK

	bot := &services.BotService{
		Store:       st,
		Notifier:    notifier,
		Files:       files,
		AI:          bridge,
		Knowledge:   knowledge,
		Roster:      roster,
		GroupChatID: cfg.Telegram.GroupChatID,
		Location:    cfg.Location(),
		Log:         lg.With().Str("component", "bot").Logger(),
	}
	jobs := &services.JobService{
		Store:                 st,
		Notifier:              notifier,
		Engine:                engine,
		Roster:                roster,
		GroupChatID:           cfg.Telegram.GroupChatID,
		Log:                   lg.With().Str("component", "jobs").Logger(),
		RequireReminderWindow: cfg.Schedule.RequireReminderWindow,
	}

	return &app{
		cfg:          cfg,
		log:          lg,
		db:           db,
		bot:          bot,
		jobs:         jobs,
		shutdownOTel: shutdown,
	}, nil
}

// close flushes traces and releases the database pool.
func (a *app) close(ctx context.Context) {
	if err := a.shutdownOTel(ctx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
