// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database access, authentication, alert
// rules, scheduler triggers, outbound channels, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "brokerage-alerts")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and configures the backing store.
type DBConfig struct {
	Driver         string // postgres|sqlite
	DSN            string // DATABASE_URL (Supabase connection string)
	Path           string // SQLite path when Driver=sqlite
	MigrateSources bool   // also migrate back-office tables (dev/local only)
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret     string // SUPABASE_JWT_SECRET (HS256)
	Audience      string // expected "aud" claim; empty disables the check
	AllowDevUser  bool   // accept X-User-ID without a token (local only)
	AdminRoleName string // role claim value granting admin endpoints
}

// AlertsConfig holds the alert rule thresholds.
type AlertsConfig struct {
	RenewalLookaheadDays     int
	InstallmentLookaheadDays int
	HealthPlanLookaheadDays  int
	DocumentLookaheadDays    int
	CommissionAgeDays        int
	ClaimStaleDays           int
	RetentionDays            int
	RefireAfterRead          bool
	DispatchMinPriority      string // baixa|media|alta|urgente
}

// SchedulerConfig holds the time-of-day triggers of the alert jobs.
type SchedulerConfig struct {
	Enabled  bool
	Timezone string
	// Jobs maps a job name to its "HH:MM" trigger.
	Jobs map[string]string
}

// WhatsAppConfig configures the Twilio-compatible messaging gateway.
type WhatsAppConfig struct {
	Enabled    bool
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
	MaxRetries int
}

// SMTPConfig configures the e-mail channel.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// RedisConfig configures the realtime alert event publisher.
type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
	Channel string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Storage / auth
	DB   DBConfig
	Auth AuthConfig

	// Alerting
	Alerts    AlertsConfig
	Scheduler SchedulerConfig

	// Outbound channels
	WhatsApp WhatsAppConfig
	SMTP     SMTPConfig
	Redis    RedisConfig

	// Observability
	OTEL OTELConfig
}

// DefaultJobTimes lists the built-in job triggers, overridable one by one via
// SCHEDULE_<NAME> (e.g. SCHEDULE_RENOVACOES=07:30).
var DefaultJobTimes = map[string]string{
	"aniversarios": "07:00",
	"renovacoes":   "08:00",
	"parcelas":     "08:30",
	"tarefas":      "09:00",
	"comissoes":    "10:00",
	"despacho":     "12:00",
	"resumo":       "18:00",
	"limpeza":      "03:00",
}

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		DB: DBConfig{
			Driver:         strings.ToLower(getenv("DB_DRIVER", "postgres")),
			DSN:            getenv("DATABASE_URL", ""),
			Path:           getenv("DB_PATH", "alertas.db"),
			MigrateSources: getbool("DB_MIGRATE_SOURCES", false),
		},
		Auth: AuthConfig{
			JWTSecret:     getenv("SUPABASE_JWT_SECRET", ""),
			Audience:      getenv("AUTH_AUDIENCE", "authenticated"),
			AllowDevUser:  getbool("AUTH_ALLOW_DEV_USER", false),
			AdminRoleName: getenv("AUTH_ADMIN_ROLE", "admin"),
		},

		Alerts: AlertsConfig{
			RenewalLookaheadDays:     getint("ALERT_RENEWAL_LOOKAHEAD_DAYS", 30),
			InstallmentLookaheadDays: getint("ALERT_INSTALLMENT_LOOKAHEAD_DAYS", 7),
			HealthPlanLookaheadDays:  getint("ALERT_HEALTH_PLAN_LOOKAHEAD_DAYS", 30),
			DocumentLookaheadDays:    getint("ALERT_DOCUMENT_LOOKAHEAD_DAYS", 7),
			CommissionAgeDays:        getint("ALERT_COMMISSION_AGE_DAYS", 30),
			ClaimStaleDays:           getint("ALERT_CLAIM_STALE_DAYS", 15),
			RetentionDays:            getint("ALERT_RETENTION_DAYS", 90),
			RefireAfterRead:          getbool("ALERT_REFIRE_AFTER_READ", false),
			DispatchMinPriority:      strings.ToLower(getenv("DISPATCH_MIN_PRIORITY", "alta")),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getbool("SCHEDULER_ENABLED", true),
			Timezone: getenv("SCHEDULER_TIMEZONE", "America/Sao_Paulo"),
			Jobs:     jobTimes(),
		},

		WhatsApp: WhatsAppConfig{
			Enabled:    getbool("WHATSAPP_ENABLED", false),
			BaseURL:    getenv("WHATSAPP_BASE_URL", "https://api.twilio.com/2010-04-01"),
			AccountSID: getenv("WHATSAPP_ACCOUNT_SID", ""),
			AuthToken:  getenv("WHATSAPP_AUTH_TOKEN", ""),
			From:       getenv("WHATSAPP_FROM", ""),
			Timeout:    getdur("WHATSAPP_TIMEOUT", 15*time.Second),
			MaxRetries: getint("WHATSAPP_MAX_RETRIES", 3),
		},
		SMTP: SMTPConfig{
			Enabled:  getbool("SMTP_ENABLED", false),
			Host:     getenv("SMTP_HOST", ""),
			Port:     getint("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		Redis: RedisConfig{
			Enabled: getbool("REDIS_ENABLED", false),
			Addr:    getenv("REDIS_ADDR", "localhost:6379"),
			DB:      getint("REDIS_DB", 0),
			Channel: getenv("REDIS_ALERT_CHANNEL", "alertas"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "brokerage-alerts"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
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

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: postgres, sqlite")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowDevUser {
		return cfg, errors.New("SUPABASE_JWT_SECRET must be set (or AUTH_ALLOW_DEV_USER=true for local use)")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	a := cfg.Alerts
	if a.RenewalLookaheadDays < 0 || a.InstallmentLookaheadDays < 0 || a.HealthPlanLookaheadDays < 0 || a.DocumentLookaheadDays < 0 {
		return cfg, errors.New("alert lookahead windows must be >= 0 days")
	}
	if a.CommissionAgeDays < 0 || a.ClaimStaleDays < 0 {
		return cfg, errors.New("alert age thresholds must be >= 0 days")
	}
	if a.RetentionDays < 1 {
		return cfg, errors.New("ALERT_RETENTION_DAYS must be >= 1")
	}
	switch a.DispatchMinPriority {
	case "baixa", "media", "alta", "urgente":
	default:
		return cfg, errors.New("DISPATCH_MIN_PRIORITY must be one of: baixa, media, alta, urgente")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return cfg, errors.New("SCHEDULER_TIMEZONE must be a valid IANA zone name")
	}
	for name, at := range cfg.Scheduler.Jobs {
		if _, _, err := ParseTimeOfDay(at); err != nil {
			return cfg, errors.New("SCHEDULE_" + strings.ToUpper(name) + " must be HH:MM")
		}
	}
	if cfg.WhatsApp.Enabled && (cfg.WhatsApp.AccountSID == "" || cfg.WhatsApp.AuthToken == "" || cfg.WhatsApp.From == "") {
		return cfg, errors.New("WHATSAPP_ACCOUNT_SID, WHATSAPP_AUTH_TOKEN and WHATSAPP_FROM are required when WHATSAPP_ENABLED")
	}
	if cfg.SMTP.Enabled && (cfg.SMTP.Host == "" || cfg.SMTP.From == "") {
		return cfg, errors.New("SMTP_HOST and SMTP_FROM are required when SMTP_ENABLED")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ParseTimeOfDay parses "HH:MM" (24h) into hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, errors.New("time of day must be HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.New("hour must be in [0,23]")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.New("minute must be in [0,59]")
	}
	return hour, minute, nil
}

// ---- helpers (no external deps) ----

func jobTimes() map[string]string {
	out := make(map[string]string, len(DefaultJobTimes))
	for name, def := range DefaultJobTimes {
		out[name] = getenv("SCHEDULE_"+strings.ToUpper(name), def)
	}
	return out
}

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

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
