package config

import (
	"strings"

	"github.com/veedubyou/stem-splitter/src/shared/config/envvar"
)

func (c *Config) applyEnv() {
	override := func(key string, target *string) {
		if val, ok := envvar.Get(key); ok {
			*target = val
		}
	}

	override(envvar.UPLOAD_ROOT, &c.Paths.UploadRoot)
	override(envvar.PROCESSED_ROOT, &c.Paths.ProcessedRoot)
	override(envvar.LOCK_DIR, &c.Paths.LockDir)

	override(envvar.DEMUCS_BIN_PATH, &c.Tool.BinPath)
	override(envvar.DEMUCS_WORKING_DIR_PATH, &c.Tool.WorkingDir)
	override(envvar.DEFAULT_MODEL, &c.Tool.DefaultModel)

	override(envvar.PORT, &c.Server.Port)
	override(envvar.PUBLIC_BASE_URL, &c.Server.PublicBaseURL)
	if origins, ok := envvar.Get(envvar.ALLOWED_ORIGINS); ok {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	override(envvar.RABBITMQ_URL, &c.Events.RabbitMQURL)
	override(envvar.RABBITMQ_QUEUE_NAME, &c.Events.QueueName)

	override(envvar.MIRROR_PROVIDER, &c.Mirror.Provider)
	override(envvar.GOOGLE_CLOUD_KEY, &c.Mirror.GCS.CredentialsJSON)
	override(envvar.GOOGLE_CLOUD_STORAGE_BUCKET_NAME, &c.Mirror.GCS.Bucket)
	override(envvar.AWS_ACCESS_KEY_ID, &c.Mirror.S3.AccessKeyID)
	override(envvar.AWS_SECRET_ACCESS_KEY, &c.Mirror.S3.SecretAccessKey)
	override(envvar.AWS_REGION, &c.Mirror.S3.Region)
	override(envvar.S3_BUCKET_NAME, &c.Mirror.S3.Bucket)

	override(envvar.LOG_LEVEL, &c.Logging.Level)
}
