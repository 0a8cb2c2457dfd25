package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

type Config struct {
	LogLevel  string
	LogFormat string

	SlackBotToken       string
	SlackAppToken       string
	SlackLoggingChannel string

	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModels         []string
	OpenAIAttemptTimeout time.Duration

	AirtableToken           string
	AirtableBaseID          string
	AirtableTable           string
	AirtableTableID         string
	AirtableViewID          string
	AirtableAttachmentField string

	ScratchDir string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	MetricsPort    string
	BreakerEnabled bool
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// Load reads the environment, then fills unset values from the YAML file
// named by CONFIG_FILE when present.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:  mustEnv("LOG_LEVEL", "info"),
		LogFormat: mustEnv("LOG_FORMAT", "json"),

		SlackBotToken:       mustEnv("SLACK_BOT_TOKEN", ""),
		SlackAppToken:       mustEnv("SLACK_APP_TOKEN", ""),
		SlackLoggingChannel: mustEnv("SLACK_LOGGING_CHANNEL", ""),

		OpenAIAPIKey:         mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModels:         mustEnvList("OPENAI_MODELS", []string{"gpt-5", "gpt-4o", "gpt-4o-mini"}),
		OpenAIAttemptTimeout: time.Duration(mustEnvInt("OPENAI_ATTEMPT_TIMEOUT_SECONDS", 180)) * time.Second,

		AirtableToken:           mustEnv("AIRTABLE_API_TOKEN", ""),
		AirtableBaseID:          mustEnv("AIRTABLE_AI_TEACHING_AND_LEARNING_BASE", ""),
		AirtableTable:           mustEnv("AIRTABLE_PDFS_TABLE", "PDFs"),
		AirtableTableID:         mustEnv("AIRTABLE_PDFS_TABLE_ID", ""),
		AirtableViewID:          mustEnv("AIRTABLE_PDFS_VIEW_ID", ""),
		AirtableAttachmentField: mustEnv("AIRTABLE_ATTACHMENT_FIELD", "File"),

		ScratchDir: mustEnv("SCRATCH_DIR", os.TempDir()),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "research.pdf.processed"),

		MetricsPort:    mustEnv("METRICS_PORT", "9090"),
		BreakerEnabled: mustEnvBool("BREAKER_ENABLED", true),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		overlay, err := readOverlay(path)
		if err != nil {
			return Config{}, domain.WrapError(domain.ErrConfig, "read config file", err)
		}
		overlay.apply(&cfg)
	}
	return cfg, nil
}

// Validate checks everything the bot needs to serve events.
func (c Config) Validate() error {
	if err := require(map[string]string{
		"SLACK_BOT_TOKEN":    c.SlackBotToken,
		"SLACK_APP_TOKEN":    c.SlackAppToken,
		"OPENAI_API_KEY":     c.OpenAIAPIKey,
		"AIRTABLE_API_TOKEN": c.AirtableToken,
		"AIRTABLE_AI_TEACHING_AND_LEARNING_BASE": c.AirtableBaseID,
	}); err != nil {
		return err
	}
	if len(c.OpenAIModels) == 0 {
		return domain.WrapError(domain.ErrConfig, "validate config", fmt.Errorf("OPENAI_MODELS is empty"))
	}
	if c.OpenAIAttemptTimeout <= 0 {
		return domain.WrapError(domain.ErrConfig, "validate config", fmt.Errorf("OPENAI_ATTEMPT_TIMEOUT_SECONDS must be positive"))
	}
	return nil
}

func (c Config) ValidateAirtable() error {
	return require(map[string]string{
		"AIRTABLE_API_TOKEN": c.AirtableToken,
		"AIRTABLE_AI_TEACHING_AND_LEARNING_BASE": c.AirtableBaseID,
	})
}

func (c Config) ValidateJournal() error {
	return require(map[string]string{"POSTGRES_DSN": c.PostgresDSN})
}

func (c Config) ValidateNATS() error {
	return require(map[string]string{"NATS_URL": c.NATSURL})
}

func require(values map[string]string) error {
	missing := make([]string, 0)
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return domain.WrapError(domain.ErrConfig, "validate config", fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := splitList(v)
	if len(out) == 0 {
		return fallback
	}
	return out
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
