package envvar

import (
	"fmt"
	"os"
	"strings"
)

const (
	STEM_SPLITTER_CONFIG             = "STEM_SPLITTER_CONFIG"
	UPLOAD_ROOT                      = "UPLOAD_ROOT"
	PROCESSED_ROOT                   = "PROCESSED_ROOT"
	LOCK_DIR                         = "LOCK_DIR"
	DEMUCS_BIN_PATH                  = "DEMUCS_BIN_PATH"
	DEMUCS_WORKING_DIR_PATH          = "DEMUCS_WORKING_DIR_PATH"
	DEFAULT_MODEL                    = "DEFAULT_MODEL"
	PORT                             = "PORT"
	PUBLIC_BASE_URL                  = "PUBLIC_BASE_URL"
	ALLOWED_ORIGINS                  = "ALLOWED_ORIGINS"
	RABBITMQ_URL                     = "RABBITMQ_URL"
	RABBITMQ_QUEUE_NAME              = "RABBITMQ_QUEUE_NAME"
	MIRROR_PROVIDER                  = "MIRROR_PROVIDER"
	GOOGLE_CLOUD_KEY                 = "GOOGLE_CLOUD_KEY"
	GOOGLE_CLOUD_STORAGE_BUCKET_NAME = "GOOGLE_CLOUD_STORAGE_BUCKET_NAME"
	AWS_ACCESS_KEY_ID                = "AWS_ACCESS_KEY_ID"
	AWS_SECRET_ACCESS_KEY            = "AWS_SECRET_ACCESS_KEY"
	AWS_REGION                       = "AWS_REGION"
	S3_BUCKET_NAME                   = "S3_BUCKET_NAME"
	LOG_LEVEL                        = "LOG_LEVEL"
)

func MustGet(key string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	if val == "" {
		panic(fmt.Sprintf("Env variable is empty for key %s", key))
	}

	return val
}

// Get returns the trimmed value and whether it was set to something non-empty.
func Get(key string) (string, bool) {
	val, isSet := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	return val, isSet && val != ""
}
