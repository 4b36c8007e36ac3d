package config

import (
	"bytes"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/veedubyou/stem-splitter/src/shared/config/envvar"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
)

type Paths struct {
	UploadRoot    string `toml:"upload_root"`
	ProcessedRoot string `toml:"processed_root"`
	// LockDir defaults to <processed_root>/.locks
	LockDir string `toml:"lock_dir"`
}

type Tool struct {
	BinPath       string   `toml:"bin_path"`
	WorkingDir    string   `toml:"working_dir"`
	DefaultModel  string   `toml:"default_model"`
	AllowedModels []string `toml:"allowed_models"`
	Device        string   `toml:"device"`
	ExtraArgs     []string `toml:"extra_args"`
	// 0 disables the timeout
	TimeoutSeconds int `toml:"timeout_seconds"`
}

func (t Tool) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

type Server struct {
	Port              string   `toml:"port"`
	PublicBaseURL     string   `toml:"public_base_url"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	LogRequests       bool     `toml:"log_requests"`
	MaxConcurrentJobs int      `toml:"max_concurrent_jobs"`
}

type Events struct {
	RabbitMQURL string `toml:"rabbitmq_url"`
	QueueName   string `toml:"queue_name"`
}

func (e Events) Enabled() bool {
	return e.RabbitMQURL != ""
}

type Logging struct {
	// debug, info, warn or error
	Level string `toml:"level"`
	// auto, cli, json or text
	Format string `toml:"format"`
}

type Config struct {
	Environment env.Environment `toml:"-"`
	Paths       Paths           `toml:"paths"`
	Tool        Tool            `toml:"tool"`
	Server      Server          `toml:"server"`
	Mirror      Mirror          `toml:"mirror"`
	Events      Events          `toml:"events"`
	Logging     Logging         `toml:"logging"`
}

// Load layers, in order: the defaults for the environment, the TOML file
// (path, falling back to STEM_SPLITTER_CONFIG), then environment variables.
// The result is normalized and validated.
func Load(path string, environment env.Environment) (*Config, error) {
	cfg := Default(environment)

	if path == "" {
		path, _ = envvar.Get(envvar.STEM_SPLITTER_CONFIG)
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Normalize(); err != nil {
		return nil, errors.Wrap(err, "Failed to normalize config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid config")
	}

	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	errctx := cerr.Field("config_path", path)

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errctx.Wrap(err).Error("Config file does not exist")
		}
		return errctx.Wrap(err).Error("Failed to read config file")
	}

	decoder := toml.NewDecoder(bytes.NewReader(contents))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return errctx.Wrap(err).Error("Failed to parse config file")
	}

	return nil
}

const redacted = "<redacted>"

// TOML encodes the config with secrets redacted.
func (c *Config) TOML() ([]byte, error) {
	printable := *c
	redact(&printable.Mirror.GCS.CredentialsJSON)
	redact(&printable.Mirror.S3.SecretAccessKey)
	printable.Events.RabbitMQURL = redactURLPassword(printable.Events.RabbitMQURL)

	contents, err := toml.Marshal(printable)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to encode config as TOML")
	}

	return contents, nil
}

func redact(value *string) {
	if *value != "" {
		*value = redacted
	}
}

func redactURLPassword(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}

	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), redacted)
	}
	return parsed.String()
}
