package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ThreeC     ThreeCConfig     `yaml:"threec" mapstructure:"threec"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ThreeCConfig holds the call-source API settings.
type ThreeCConfig struct {
	Token              string      `yaml:"token" mapstructure:"token"`
	BaseURL            string      `yaml:"base_url" mapstructure:"base_url"`
	PageSize           int         `yaml:"page_size" mapstructure:"page_size"`
	MaxPages           int         `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs        int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	InsecureSkipVerify bool        `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Retry              RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// CRMConfig holds HubSpot settings.
type CRMConfig struct {
	Token        string         `yaml:"token" mapstructure:"token"`
	BaseURL      string         `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS float64        `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Properties   PropertyConfig `yaml:"properties" mapstructure:"properties"`
	Retry        RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit      CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
}

// CircuitConfig configures the CRM circuit breaker. A zero threshold
// disables it.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// PropertyConfig maps each synced field to its HubSpot internal property name.
type PropertyConfig struct {
	Phone         string `yaml:"phone" mapstructure:"phone"`
	FirstName     string `yaml:"first_name" mapstructure:"first_name"`
	StatusLabel   string `yaml:"status_label" mapstructure:"status_label"`
	RecordingLink string `yaml:"recording_link" mapstructure:"recording_link"`
	Contacted     string `yaml:"contacted" mapstructure:"contacted"`
	LastSuccess   string `yaml:"last_success" mapstructure:"last_success"`
	LastFailure   string `yaml:"last_failure" mapstructure:"last_failure"`
}

// RetryConfig configures retries of remote reads.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// SyncConfig configures the polling loop and the outcome rules.
type SyncConfig struct {
	IntervalSecs       int      `yaml:"interval_secs" mapstructure:"interval_secs"`
	PacingMs           int      `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	Timezone           string   `yaml:"timezone" mapstructure:"timezone"`
	VoicemailLabels    []string `yaml:"voicemail_labels" mapstructure:"voicemail_labels"`
	DefaultStatusLabel string   `yaml:"default_status_label" mapstructure:"default_status_label"`
	NotAnsweredLabel   string   `yaml:"not_answered_label" mapstructure:"not_answered_label"`
	PlaceholderName    string   `yaml:"placeholder_name" mapstructure:"placeholder_name"`
	SkipUnansweredNew  bool     `yaml:"skip_unanswered_new" mapstructure:"skip_unanswered_new"`
	HistorySize        int      `yaml:"history_size" mapstructure:"history_size"`
}

// Timeout returns the per-request timeout.
func (t ThreeCConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSecs) * time.Second
}

// Interval returns the delay between the end of one cycle and the next.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSecs) * time.Second
}

// Pacing returns the pause after each CRM write.
func (s SyncConfig) Pacing() time.Duration {
	return time.Duration(s.PacingMs) * time.Millisecond
}

// Location loads the configured timezone.
func (s SyncConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", s.Timezone)
	}
	return loc, nil
}

// ServerConfig configures the liveness server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures cycle alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinWrites            int     `yaml:"min_writes" mapstructure:"min_writes"`
	FetchFailureCycles   int     `yaml:"fetch_failure_cycles" mapstructure:"fetch_failure_cycles"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over its values.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CALLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names used by earlier deployments.
	if err := v.BindEnv("threec.token", "CALLSYNC_THREEC_TOKEN", "TOKEN_3C"); err != nil {
		return nil, eris.Wrap(err, "config: bind threec token")
	}
	if err := v.BindEnv("crm.token", "CALLSYNC_CRM_TOKEN", "HUBSPOT_TOKEN"); err != nil {
		return nil, eris.Wrap(err, "config: bind crm token")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 3000)
	v.SetDefault("threec.base_url", "https://3c.fluxoti.com/api/v1")
	v.SetDefault("threec.page_size", 100)
	v.SetDefault("threec.max_pages", 0)
	v.SetDefault("threec.timeout_secs", 30)
	v.SetDefault("threec.insecure_skip_verify", true)
	v.SetDefault("threec.retry.max_attempts", 3)
	v.SetDefault("threec.retry.initial_backoff_ms", 500)
	v.SetDefault("threec.retry.max_backoff_ms", 5000)
	v.SetDefault("crm.base_url", "https://api.hubapi.com")
	v.SetDefault("crm.rate_limit_rps", 5.0)
	v.SetDefault("crm.retry.max_attempts", 3)
	v.SetDefault("crm.retry.initial_backoff_ms", 1000)
	v.SetDefault("crm.retry.max_backoff_ms", 10000)
	v.SetDefault("crm.circuit.failure_threshold", 5)
	v.SetDefault("crm.circuit.cooldown_secs", 30)
	v.SetDefault("crm.properties.phone", "phone")
	v.SetDefault("crm.properties.first_name", "firstname")
	v.SetDefault("crm.properties.status_label", "status_ultima_ligacao")
	v.SetDefault("crm.properties.recording_link", "ultima_gravacao_3c")
	v.SetDefault("crm.properties.contacted", "lead_contatado_")
	v.SetDefault("crm.properties.last_success", "ultimo_contato_feito_em")
	v.SetDefault("crm.properties.last_failure", "ultimo_contato_sem_sucesso")
	v.SetDefault("sync.interval_secs", 60)
	v.SetDefault("sync.pacing_ms", 1000)
	v.SetDefault("sync.timezone", "America/Sao_Paulo")
	v.SetDefault("sync.voicemail_labels", []string{"Caixa Postal", "Caixa postal", "Secretária Eletrônica"})
	v.SetDefault("sync.default_status_label", "Sem tabulação")
	v.SetDefault("sync.not_answered_label", "Não atendida")
	v.SetDefault("sync.placeholder_name", "Lead 3C")
	v.SetDefault("sync.skip_unanswered_new", false)
	v.SetDefault("sync.history_size", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_writes", 5)
	v.SetDefault("monitoring.fetch_failure_cycles", 3)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed to run sync cycles.
func (c *Config) Validate() error {
	var missing []string
	if c.ThreeC.Token == "" {
		missing = append(missing, "threec.token (TOKEN_3C)")
	}
	if c.CRM.Token == "" {
		missing = append(missing, "crm.token (HUBSPOT_TOKEN)")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.ThreeC.PageSize <= 0 {
		return eris.Errorf("config: threec.page_size must be positive, got %d", c.ThreeC.PageSize)
	}
	if c.Sync.IntervalSecs <= 0 {
		return eris.Errorf("config: sync.interval_secs must be positive, got %d", c.Sync.IntervalSecs)
	}
	if c.Sync.PacingMs < 0 {
		return eris.Errorf("config: sync.pacing_ms must not be negative, got %d", c.Sync.PacingMs)
	}
	if _, err := c.Sync.Location(); err != nil {
		return err
	}
	return nil
}

// Redacted returns a copy safe to print, with API tokens and the webhook URL
// masked.
func (c Config) Redacted() Config {
	c.ThreeC.Token = mask(c.ThreeC.Token)
	c.CRM.Token = mask(c.CRM.Token)
	c.Monitoring.WebhookURL = mask(c.Monitoring.WebhookURL)
	c.Sync.VoicemailLabels = append([]string(nil), c.Sync.VoicemailLabels...)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
