package config

import "fmt"

const (
	ProviderNone = ""
	ProviderGCS  = "gcs"
	ProviderS3   = "s3"

	GoogleStorageHost = "https://storage.googleapis.com"
)

type Mirror struct {
	// empty, gcs or s3
	Provider string    `toml:"provider"`
	GCS      GCSMirror `toml:"gcs"`
	S3       S3Mirror  `toml:"s3"`
}

func (m Mirror) Enabled() bool {
	return m.Provider != ProviderNone
}

type CloudStorage interface {
	GetStorageHost() string
	GetBucket() string
}

var _ CloudStorage = GCSMirror{}

type GCSMirror struct {
	// StorageHost prefixes generated object URLs
	StorageHost string `toml:"storage_host"`
	Bucket      string `toml:"bucket"`
	// CredentialsJSON holds a service account key; empty uses the default credentials
	CredentialsJSON string `toml:"credentials_json"`
	// Endpoint points the client at a local emulator
	Endpoint string `toml:"endpoint"`
}

func (g GCSMirror) GetStorageHost() string {
	return g.StorageHost
}

func (g GCSMirror) GetBucket() string {
	return g.Bucket
}

var _ CloudStorage = S3Mirror{}

type S3Mirror struct {
	StorageHost     string `toml:"storage_host"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	// Endpoint points the client at an S3 compatible server, path style addressing is used
	Endpoint string `toml:"endpoint"`
}

func (s S3Mirror) GetStorageHost() string {
	return s.StorageHost
}

func (s S3Mirror) GetBucket() string {
	return s.Bucket
}

func defaultS3StorageHost(region string) string {
	return fmt.Sprintf("https://s3.%s.amazonaws.com", region)
}
