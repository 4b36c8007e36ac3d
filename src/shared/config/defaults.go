package config

import (
	"github.com/veedubyou/stem-splitter/src/shared/config/dev"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
)

const (
	DefaultModel          = "htdemucs"
	DefaultBin            = "demucs"
	DefaultTimeoutSeconds = 1800
	DefaultQueueName      = "stem-splitter-events"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "auto"
)

// Default gives development a working layout under the project root.
// Production and test must name their roots explicitly.
func Default(environment env.Environment) Config {
	cfg := Config{
		Environment: environment,
		Tool: Tool{
			BinPath:        DefaultBin,
			DefaultModel:   DefaultModel,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Server: Server{
			Port:           dev.Port,
			AllowedOrigins: []string{"*"},
			LogRequests:    true,
		},
		Events: Events{
			QueueName: DefaultQueueName,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}

	if environment == env.Development {
		cfg.Paths.UploadRoot = dev.UploadRoot()
		cfg.Paths.ProcessedRoot = dev.ProcessedRoot()
		cfg.Tool.WorkingDir = dev.ToolWorkingDir()
	}

	if environment == env.Production {
		cfg.Server.AllowedOrigins = nil
	}

	return cfg
}
