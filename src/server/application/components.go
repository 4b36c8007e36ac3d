package application

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cockroachdb/errors"
	"github.com/veedubyou/stem-splitter/src/shared/config"
	"github.com/veedubyou/stem-splitter/src/shared/lib/executor"
	"github.com/veedubyou/stem-splitter/src/shared/lib/rabbitmq"
	"github.com/veedubyou/stem-splitter/src/shared/lib/storagepath"
	"github.com/veedubyou/stem-splitter/src/shared/separation/events"
	"github.com/veedubyou/stem-splitter/src/shared/separation/invoker"
	"github.com/veedubyou/stem-splitter/src/shared/separation/joblock"
	"github.com/veedubyou/stem-splitter/src/shared/separation/mirror"
	"github.com/veedubyou/stem-splitter/src/shared/separation/orchestrator"
	"github.com/veedubyou/stem-splitter/src/shared/separation/pathresolver"
	"github.com/veedubyou/stem-splitter/src/shared/separation/relocator"
	"google.golang.org/api/option"
)

type Components struct {
	Separator *orchestrator.JobOrchestrator
	closeFns  []func() error
}

func (c Components) Close() error {
	var err error
	for _, closeFn := range c.closeFns {
		err = errors.CombineErrors(err, closeFn())
	}
	return err
}

// NewComponents wires the orchestrator with the real executor, the
// configured mirror and the event publisher. The caller owns Close.
func NewComponents(cfg *config.Config) (Components, error) {
	components := Components{}

	resolver, err := pathresolver.NewResolver(cfg.Paths.UploadRoot, cfg.Paths.ProcessedRoot)
	if err != nil {
		return Components{}, errors.Wrap(err, "Failed to create path resolver")
	}

	locker, err := joblock.NewLocker(cfg.Paths.LockDir)
	if err != nil {
		return Components{}, errors.Wrap(err, "Failed to create job locker")
	}

	deps := orchestrator.Dependencies{
		Resolver:  resolver,
		Invoker:   makeInvoker(cfg, executor.BinaryFileExecutor{}),
		Relocator: relocator.NewOutputRelocator(),
		Locker:    locker,
	}

	if cfg.Mirror.Enabled() {
		stemMirror, closeFn, err := makeMirror(context.Background(), cfg.Mirror)
		if err != nil {
			return Components{}, errors.Wrap(err, "Failed to create stem mirror")
		}
		deps.Mirror = stemMirror
		if closeFn != nil {
			components.closeFns = append(components.closeFns, closeFn)
		}
	}

	if cfg.Events.Enabled() {
		publisher, err := makeRabbitMQPublisher(cfg.Events)
		if err != nil {
			_ = components.Close()
			return Components{}, errors.Wrap(err, "Failed to create event publisher")
		}
		deps.Notifier = events.NewNotifier(publisher)
		components.closeFns = append(components.closeFns, publisher.Close)
	}

	jobOrchestrator, err := orchestrator.NewJobOrchestrator(orchestrator.Config{
		DefaultModel:      cfg.Tool.DefaultModel,
		AllowedModels:     cfg.Tool.AllowedModels,
		MaxConcurrentJobs: int64(cfg.Server.MaxConcurrentJobs),
		DownloadBaseURL:   cfg.Server.PublicBaseURL,
	}, deps)
	if err != nil {
		_ = components.Close()
		return Components{}, errors.Wrap(err, "Failed to create job orchestrator")
	}

	components.Separator = jobOrchestrator
	return components, nil
}

func makeInvoker(cfg *config.Config, exec executor.Executor) invoker.SeparationInvoker {
	return invoker.NewSeparationInvoker(invoker.Config{
		BinPath:    cfg.Tool.BinPath,
		WorkingDir: cfg.Tool.WorkingDir,
		Device:     cfg.Tool.Device,
		ExtraArgs:  cfg.Tool.ExtraArgs,
		Timeout:    cfg.Tool.Timeout(),
	}, cfg.Paths.ProcessedRoot, exec)
}

func makeRabbitMQPublisher(eventsConfig config.Events) (*rabbitmq.QueuePublisher, error) {
	publisher, err := rabbitmq.NewQueuePublisher(eventsConfig.RabbitMQURL, eventsConfig.QueueName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create rabbitMQ publisher")
	}

	return publisher, nil
}

// makeMirror also returns the store's close func, nil when there is nothing
// to release.
func makeMirror(ctx context.Context, mirrorConfig config.Mirror) (mirror.Mirror, func() error, error) {
	var fileStore mirror.FileStore
	var cloudStorage config.CloudStorage
	var closeFn func() error

	switch mirrorConfig.Provider {
	case config.ProviderGCS:
		store, err := makeGoogleFileStore(ctx, mirrorConfig.GCS)
		if err != nil {
			return mirror.Mirror{}, nil, err
		}
		fileStore, cloudStorage, closeFn = store, mirrorConfig.GCS, store.Close

	case config.ProviderS3:
		store, err := makeS3FileStore(mirrorConfig.S3)
		if err != nil {
			return mirror.Mirror{}, nil, err
		}
		fileStore, cloudStorage = store, mirrorConfig.S3

	default:
		return mirror.Mirror{}, nil, errors.Newf("Unexpected mirror provider %q", mirrorConfig.Provider)
	}

	return mirror.NewMirror(fileStore, storagepath.Generator{
		Host:   cloudStorage.GetStorageHost(),
		Bucket: cloudStorage.GetBucket(),
	}), closeFn, nil
}

func makeGoogleFileStore(ctx context.Context, gcsConfig config.GCSMirror) (mirror.GoogleFileStore, error) {
	var options []option.ClientOption

	switch {
	case gcsConfig.Endpoint != "":
		options = append(options, option.WithEndpoint(gcsConfig.Endpoint), option.WithoutAuthentication())
	case gcsConfig.CredentialsJSON != "":
		options = append(options, option.WithCredentialsJSON([]byte(gcsConfig.CredentialsJSON)))
	}

	store, err := mirror.NewGoogleFileStore(ctx, gcsConfig.StorageHost, options...)
	if err != nil {
		return mirror.GoogleFileStore{}, errors.Wrap(err, "Failed to create google file store")
	}

	return store, nil
}

func makeS3FileStore(s3Config config.S3Mirror) (mirror.S3FileStore, error) {
	awsConfig := aws.NewConfig().WithRegion(s3Config.Region)

	if s3Config.AccessKeyID != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(
			s3Config.AccessKeyID,
			s3Config.SecretAccessKey,
			"",
		))
	}

	if s3Config.Endpoint != "" {
		awsConfig = awsConfig.
			WithEndpoint(s3Config.Endpoint).
			WithS3ForcePathStyle(true)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return mirror.S3FileStore{}, errors.Wrap(err, "Failed to create AWS session")
	}

	return mirror.NewS3FileStore(awsSession, s3Config.StorageHost), nil
}
