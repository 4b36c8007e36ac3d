package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
)

const lockDirName = ".locks"

// Normalize trims values, makes every path absolute and fills the defaults
// that depend on other values.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTool(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeMirror()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadRoot, err = expandPath(c.Paths.UploadRoot); err != nil {
		return cerr.Wrap(err).Error("paths.upload_root")
	}
	if c.Paths.ProcessedRoot, err = expandPath(c.Paths.ProcessedRoot); err != nil {
		return cerr.Wrap(err).Error("paths.processed_root")
	}

	if strings.TrimSpace(c.Paths.LockDir) == "" && c.Paths.ProcessedRoot != "" {
		c.Paths.LockDir = filepath.Join(c.Paths.ProcessedRoot, lockDirName)
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return cerr.Wrap(err).Error("paths.lock_dir")
	}

	return nil
}

func (c *Config) normalizeTool() error {
	c.Tool.BinPath = strings.TrimSpace(c.Tool.BinPath)
	c.Tool.DefaultModel = strings.TrimSpace(c.Tool.DefaultModel)
	c.Tool.Device = strings.TrimSpace(c.Tool.Device)
	c.Tool.AllowedModels = trimAll(c.Tool.AllowedModels)

	// an unresolvable name is kept, each job then fails as tool unavailable
	if binPath, err := FindBin(c.Tool.BinPath); err == nil {
		c.Tool.BinPath = binPath
	}

	var err error
	if c.Tool.WorkingDir, err = expandPath(c.Tool.WorkingDir); err != nil {
		return cerr.Wrap(err).Error("tool.working_dir")
	}

	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	if c.Server.Port != "" && !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}

	c.Server.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(c.Server.PublicBaseURL), "/")
	c.Server.AllowedOrigins = trimAll(c.Server.AllowedOrigins)
}

func (c *Config) normalizeMirror() {
	c.Mirror.Provider = strings.ToLower(strings.TrimSpace(c.Mirror.Provider))

	switch c.Mirror.Provider {
	case ProviderGCS:
		if c.Mirror.GCS.StorageHost == "" {
			c.Mirror.GCS.StorageHost = GoogleStorageHost
		}
		c.Mirror.GCS.StorageHost = strings.TrimSuffix(c.Mirror.GCS.StorageHost, "/")

	case ProviderS3:
		if c.Mirror.S3.StorageHost == "" {
			switch {
			case c.Mirror.S3.Endpoint != "":
				c.Mirror.S3.StorageHost = c.Mirror.S3.Endpoint
			case c.Mirror.S3.Region != "":
				c.Mirror.S3.StorageHost = defaultS3StorageHost(c.Mirror.S3.Region)
			}
		}
		c.Mirror.S3.StorageHost = strings.TrimSuffix(c.Mirror.S3.StorageHost, "/")
	}
}

func (c *Config) normalizeEvents() {
	c.Events.RabbitMQURL = strings.TrimSpace(c.Events.RabbitMQURL)
	c.Events.QueueName = strings.TrimSpace(c.Events.QueueName)
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func expandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", nil
	}

	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", cerr.Wrap(err).Error("Failed to resolve home directory")
		}
		pathValue = filepath.Join(home, strings.TrimPrefix(pathValue, "~"))
	}

	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", cerr.Field("path", pathValue).Wrap(err).Error("Failed to resolve absolute path")
	}

	return absolute, nil
}

func trimAll(values []string) []string {
	var trimmed []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			trimmed = append(trimmed, value)
		}
	}
	return trimmed
}
