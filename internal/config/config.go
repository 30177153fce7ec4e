// Package config provides application configuration loaded from environment
// variables (optionally seeded by a .env file and a YAML roster file) with
// defaults and validation. It centralizes server timeouts, logging, storage,
// the roster identity mapping, scheduling windows, outbound Telegram settings,
// the AI bridge and observability.
//
// The resulting Config is built once at startup and passed by value into the
// components that need it; nothing re-reads the environment per request.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration `validate:"gte=0"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  `validate:"required"`    // OTEL_SERVICE_NAME
	SampleRatio float64 `validate:"gte=0,lte=1"` // OTEL_TRACES_SAMPLER_ARG
}

// DBConfig selects the storage driver.
type DBConfig struct {
	Driver string `validate:"oneof=sqlite postgres"`
	Path   string `validate:"required_if=Driver sqlite"`   // DB_PATH
	URL    string `validate:"required_if=Driver postgres"` // DATABASE_URL
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token         string        // BOT_TOKEN; empty disables outbound delivery
	WebhookSecret string        `validate:"omitempty,max=256"` // TELEGRAM_WEBHOOK_SECRET; empty disables the check
	APIURL        string        `validate:"required,url"`
	GroupChatID   int64         // GROUP_CHAT_ID
	SendRPS       float64       `validate:"gt=0"`
	MaxRetries    int           `validate:"gte=0,lte=10"`
	Timeout       time.Duration `validate:"gt=0"`
	MaxFileBytes  int64         `validate:"gt=0"`
}

// HolidayRange is an inclusive YYYY-MM-DD date range.
type HolidayRange struct {
	Start string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end"   validate:"required,datetime=2006-01-02"`
}

// ScheduleConfig drives the refresh and reminder predicates.
type ScheduleConfig struct {
	Timezone              string         `validate:"required"`
	Holidays              []HolidayRange `validate:"dive"`
	WeekendRRule          string         `validate:"required"`
	RequireReminderWindow bool           // REMINDER_REQUIRE_WINDOW
}

// AIConfig configures the OpenAI-compatible bridge.
type AIConfig struct {
	APIKey         string // OPENAI_API_KEY; empty disables /askmyra and /trainmyra
	BaseURL        string `validate:"required,url"`
	Model          string `validate:"required"`
	EmbeddingModel string `validate:"required"`
	Persona        string
	Timeout        time.Duration `validate:"gt=0"`
	TopK           int           `validate:"gte=1,lte=20"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `validate:"required,numeric"`
	ReadTimeout       time.Duration `validate:"gt=0"`
	ReadHeaderTimeout time.Duration `validate:"gt=0"`
	WriteTimeout      time.Duration `validate:"gt=0"`
	IdleTimeout       time.Duration `validate:"gt=0"`
	MaxHeaderBytes    int           `validate:"gt=0"`
	MaxBodyBytes      int64         `validate:"gt=0"`
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string `validate:"oneof=debug info warn error fatal panic"`
	LogPretty      bool
	SwaggerEnabled bool

	// Storage
	DB DBConfig

	// Roster: display name → Telegram chat id.
	Members map[string]int64

	Telegram TelegramConfig
	Schedule ScheduleConfig
	AI       AIConfig

	// Rate limiting
	RateRPS   float64 `validate:"gte=0"`
	RateBurst int     `validate:"gte=1"`

	// Webhook redelivery dedupe window.
	UpdateDedupeTTL time.Duration `validate:"gt=0"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// DefaultHolidays are the school vacation ranges the bot shipped with.
var DefaultHolidays = []HolidayRange{
	{Start: "2025-01-01", End: "2025-08-03"},
	{Start: "2025-12-07", End: "2026-01-11"},
	{Start: "2026-05-10", End: "2026-08-02"},
}

// DefaultWeekendRRule marks Friday through Sunday as the weekend window.
const DefaultWeekendRRule = "FREQ=WEEKLY;BYDAY=FR,SA,SU"

// RosterFile is the optional YAML file named by ROSTER_FILE.
//
//	group_chat_id: -1001234567890
//	members:
//	  Alice: 111111
//	  Bob: 222222
//	holidays:
//	  - {start: 2025-01-01, end: 2025-08-03}
type RosterFile struct {
	GroupChatID int64            `yaml:"group_chat_id"`
	Members     map[string]int64 `yaml:"members"`
	Holidays    []HolidayRange   `yaml:"holidays"`
}

var validate = validator.New()

var secretTokenRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "rosterbot.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		Telegram: TelegramConfig{
			Token:         getenv("BOT_TOKEN", ""),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			APIURL:        strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			SendRPS:       getfloat("SEND_RPS", 25),
			MaxRetries:    getint("SEND_MAX_RETRIES", 3),
			Timeout:       getdur("TELEGRAM_TIMEOUT", 10*time.Second),
			MaxFileBytes:  int64(getint("MAX_FILE_BYTES", 10<<20)),
		},

		Schedule: ScheduleConfig{
			Timezone:              getenv("TIMEZONE", "Asia/Singapore"),
			Holidays:              DefaultHolidays,
			WeekendRRule:          getenv("WEEKEND_RRULE", DefaultWeekendRRule),
			RequireReminderWindow: getbool("REMINDER_REQUIRE_WINDOW", false),
		},

		AI: AIConfig{
			APIKey:         getenv("OPENAI_API_KEY", ""),
			BaseURL:        strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:          getenv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getenv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			Persona:        getenv("PERSONA_PROMPT", ""),
			Timeout:        getdur("OPENAI_TIMEOUT", 60*time.Second),
			TopK:           getint("RAG_TOP_K", 3),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 20),

		UpdateDedupeTTL: getdur("UPDATE_DEDUPE_TTL", 24*time.Hour),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "duty-roster-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- roster file, then env overrides ---
	if path := getenv("ROSTER_FILE", ""); path != "" {
		rf, err := LoadRosterFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.Members = rf.Members
		cfg.Telegram.GroupChatID = rf.GroupChatID
		if len(rf.Holidays) > 0 {
			cfg.Schedule.Holidays = rf.Holidays
		}
	}
	if v := getenv("FRIEND_TELEGRAM_MAPPINGS", ""); v != "" {
		m, err := ParseMembers(v)
		if err != nil {
			return cfg, err
		}
		cfg.Members = m
	}
	if v := getenv("GROUP_CHAT_ID", ""); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("GROUP_CHAT_ID: %w", err)
		}
		cfg.Telegram.GroupChatID = id
	}
	if v := getenv("SCHOOL_HOLIDAYS", ""); v != "" {
		hs, err := ParseHolidays(v)
		if err != nil {
			return cfg, err
		}
		cfg.Schedule.Holidays = hs
	}
	if cfg.Members == nil {
		cfg.Members = map[string]int64{}
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate runs struct validation and the checks tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if _, err := rrule.StrToRRule(cfg.Schedule.WeekendRRule); err != nil {
		return fmt.Errorf("invalid WEEKEND_RRULE: %w", err)
	}
	for i, h := range cfg.Schedule.Holidays {
		if h.Start > h.End {
			return fmt.Errorf("holiday range %d: start %s after end %s", i, h.Start, h.End)
		}
	}
	if s := cfg.Telegram.WebhookSecret; s != "" && !secretTokenRE.MatchString(s) {
		return errors.New("TELEGRAM_WEBHOOK_SECRET: only A-Z, a-z, 0-9, _ and - are allowed")
	}
	for name := range cfg.Members {
		if strings.TrimSpace(name) == "" {
			return errors.New("roster member names must not be empty")
		}
	}
	return nil
}

// Location resolves the configured schedule time zone. Validate has already
// checked it, so failure here falls back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MemberNames returns roster names in sorted order.
func (c Config) MemberNames() []string {
	out := make([]string, 0, len(c.Members))
	for n := range c.Members {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LoadRosterFile reads and validates a YAML roster file.
func LoadRosterFile(path string) (RosterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RosterFile{}, fmt.Errorf("failed to read roster file: %w", err)
	}
	var rf RosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return RosterFile{}, fmt.Errorf("failed to parse roster file: %w", err)
	}
	for i := range rf.Holidays {
		if err := validate.Struct(rf.Holidays[i]); err != nil {
			return RosterFile{}, fmt.Errorf("roster file holidays[%d]: %w", i, err)
		}
	}
	return rf, nil
}

// ParseMembers decodes FRIEND_TELEGRAM_MAPPINGS, a JSON object of name → id.
// Ids may be JSON numbers or numeric strings.
func ParseMembers(raw string) (map[string]int64, error) {
	var m map[string]json.Number
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		// Fall back to string-valued ids: {"Alice": "123"}.
		var sm map[string]string
		if err2 := json.Unmarshal([]byte(raw), &sm); err2 != nil {
			return nil, fmt.Errorf("FRIEND_TELEGRAM_MAPPINGS: %w", err)
		}
		m = make(map[string]json.Number, len(sm))
		for k, v := range sm {
			m[k] = json.Number(strings.TrimSpace(v))
		}
	}
	out := make(map[string]int64, len(m))
	for name, n := range m {
		id, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("FRIEND_TELEGRAM_MAPPINGS: id for %q: %w", name, err)
		}
		out[name] = id
	}
	return out, nil
}

// ParseHolidays decodes SCHOOL_HOLIDAYS: "start:end,start:end".
func ParseHolidays(raw string) ([]HolidayRange, error) {
	var out []HolidayRange
	for _, part := range splitCSV(raw) {
		start, end, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("SCHOOL_HOLIDAYS: %q is not start:end", part)
		}
		out = append(out, HolidayRange{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)})
	}
	return out, nil
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
