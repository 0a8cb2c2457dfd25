package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// overlay is the optional YAML file. It never carries credentials.
type overlay struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Slack struct {
		LoggingChannel string `yaml:"logging_channel"`
	} `yaml:"slack"`

	OpenAI struct {
		BaseURL               string   `yaml:"base_url"`
		Models                []string `yaml:"models"`
		AttemptTimeoutSeconds int      `yaml:"attempt_timeout_seconds"`
	} `yaml:"openai"`

	Airtable struct {
		Table           string `yaml:"table"`
		TableID         string `yaml:"table_id"`
		ViewID          string `yaml:"view_id"`
		AttachmentField string `yaml:"attachment_field"`
	} `yaml:"airtable"`

	ScratchDir  string `yaml:"scratch_dir"`
	NATSSubject string `yaml:"nats_subject"`
	MetricsPort string `yaml:"metrics_port"`
}

func readOverlay(path string) (overlay, error) {
	var o overlay
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parse %s: %w", path, err)
	}
	return o, nil
}

// apply copies file values into cfg for every setting whose environment
// variable is unset.
func (o overlay) apply(cfg *Config) {
	setString := func(key, value string, dst *string) {
		if value != "" && os.Getenv(key) == "" {
			*dst = value
		}
	}

	setString("LOG_LEVEL", o.LogLevel, &cfg.LogLevel)
	setString("LOG_FORMAT", o.LogFormat, &cfg.LogFormat)
	setString("SLACK_LOGGING_CHANNEL", o.Slack.LoggingChannel, &cfg.SlackLoggingChannel)
	setString("OPENAI_BASE_URL", o.OpenAI.BaseURL, &cfg.OpenAIBaseURL)
	setString("AIRTABLE_PDFS_TABLE", o.Airtable.Table, &cfg.AirtableTable)
	setString("AIRTABLE_PDFS_TABLE_ID", o.Airtable.TableID, &cfg.AirtableTableID)
	setString("AIRTABLE_PDFS_VIEW_ID", o.Airtable.ViewID, &cfg.AirtableViewID)
	setString("AIRTABLE_ATTACHMENT_FIELD", o.Airtable.AttachmentField, &cfg.AirtableAttachmentField)
	setString("SCRATCH_DIR", o.ScratchDir, &cfg.ScratchDir)
	setString("NATS_SUBJECT", o.NATSSubject, &cfg.NATSSubject)
	setString("METRICS_PORT", o.MetricsPort, &cfg.MetricsPort)

	if len(o.OpenAI.Models) > 0 && os.Getenv("OPENAI_MODELS") == "" {
		cfg.OpenAIModels = append([]string(nil), o.OpenAI.Models...)
	}
	if o.OpenAI.AttemptTimeoutSeconds > 0 && os.Getenv("OPENAI_ATTEMPT_TIMEOUT_SECONDS") == "" {
		cfg.OpenAIAttemptTimeout = time.Duration(o.OpenAI.AttemptTimeoutSeconds) * time.Second
	}
}
