package config

import (
	"slices"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/pathresolver"
)

var logFormats = []string{"auto", "cli", "json", "text"}

func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTool(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateMirror(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadRoot == "" {
		return errors.New("paths.upload_root must be set")
	}
	if c.Paths.ProcessedRoot == "" {
		return errors.New("paths.processed_root must be set")
	}
	if c.Paths.UploadRoot == c.Paths.ProcessedRoot {
		return cerr.Field("root", c.Paths.UploadRoot).Error("paths.upload_root and paths.processed_root must differ")
	}
	return nil
}

func (c *Config) validateTool() error {
	if c.Tool.BinPath == "" {
		return errors.New("tool.bin_path must be set")
	}
	if err := pathresolver.ValidateModelName(c.Tool.DefaultModel); err != nil {
		return errors.Wrap(err, "tool.default_model is invalid")
	}
	for _, model := range c.Tool.AllowedModels {
		if err := pathresolver.ValidateModelName(model); err != nil {
			return errors.Wrap(err, "tool.allowed_models is invalid")
		}
	}
	if len(c.Tool.AllowedModels) > 0 && !slices.Contains(c.Tool.AllowedModels, c.Tool.DefaultModel) {
		return cerr.Field("default_model", c.Tool.DefaultModel).Error("tool.default_model must be one of tool.allowed_models")
	}
	if c.Tool.TimeoutSeconds < 0 {
		return errors.New("tool.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return errors.New("server.port must be set")
	}
	if c.Server.MaxConcurrentJobs < 0 {
		return errors.New("server.max_concurrent_jobs must not be negative")
	}
	return nil
}

func (c *Config) validateMirror() error {
	switch c.Mirror.Provider {
	case ProviderNone:
		return nil
	case ProviderGCS:
		if c.Mirror.GCS.Bucket == "" {
			return errors.New("mirror.gcs.bucket must be set")
		}
		return nil
	case ProviderS3:
		if c.Mirror.S3.Bucket == "" {
			return errors.New("mirror.s3.bucket must be set")
		}
		if c.Mirror.S3.Region == "" {
			return errors.New("mirror.s3.region must be set")
		}
		return nil
	default:
		return cerr.Field("provider", c.Mirror.Provider).Error("mirror.provider must be gcs or s3")
	}
}

func (c *Config) validateEvents() error {
	if c.Events.Enabled() && c.Events.QueueName == "" {
		return errors.New("events.queue_name must be set when events.rabbitmq_url is")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return cerr.Field("level", c.Logging.Level).Wrap(err).Error("logging.level is invalid")
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		return cerr.Field("format", c.Logging.Format).Error("logging.format must be auto, cli, json or text")
	}
	return nil
}
