package orchestrator

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
	"github.com/veedubyou/stem-splitter/src/shared/separation/invoker"
	"github.com/veedubyou/stem-splitter/src/shared/separation/joblock"
	"github.com/veedubyou/stem-splitter/src/shared/separation/pathresolver"
	"github.com/veedubyou/stem-splitter/src/shared/separation/relocator"
	"golang.org/x/sync/semaphore"
)

const downloadsPrefix = "downloads"

type Invoker interface {
	Invoke(ctx context.Context, invocation invoker.Invocation) (invoker.Outcome, error)
}

type Relocator interface {
	ClearToolOutput(paths separationentity.Paths) (relocator.RestoreFunc, error)
	Relocate(paths separationentity.Paths) error
	EnumerateStems(dir string) ([]string, error)
}

type Locker interface {
	Lock(ctx context.Context, keys ...string) (joblock.ReleaseFunc, error)
}

type Mirror interface {
	Upload(ctx context.Context, job *separationentity.Job) ([]separationentity.StemDownload, error)
}

type Notifier interface {
	JobFinished(ctx context.Context, job *separationentity.Job)
}

type Config struct {
	DefaultModel string
	// AllowedModels restricts model names when not empty
	AllowedModels []string
	// MaxConcurrentJobs of zero leaves tool invocations unbounded
	MaxConcurrentJobs int64
	// DownloadBaseURL prefixes local download links; empty yields root-relative links
	DownloadBaseURL string
}

type Dependencies struct {
	Resolver  pathresolver.Resolver
	Invoker   Invoker
	Relocator Relocator
	Locker    Locker
	// Mirror is optional, stems are served locally without it
	Mirror Mirror
	// Notifier is optional
	Notifier Notifier
}

type JobOrchestrator struct {
	config    Config
	resolver  pathresolver.Resolver
	invoker   Invoker
	relocator Relocator
	locker    Locker
	mirror    Mirror
	notifier  Notifier
	slots     *semaphore.Weighted
	newID     func() string
}

func NewJobOrchestrator(config Config, deps Dependencies) (*JobOrchestrator, error) {
	if err := pathresolver.ValidateModelName(config.DefaultModel); err != nil {
		return nil, cerr.Field("default_model", config.DefaultModel).Wrap(err).Error("Default model is invalid")
	}

	if deps.Invoker == nil || deps.Relocator == nil || deps.Locker == nil {
		return nil, cerr.Error("Invoker, relocator and locker are required")
	}

	var slots *semaphore.Weighted
	if config.MaxConcurrentJobs > 0 {
		slots = semaphore.NewWeighted(config.MaxConcurrentJobs)
	}

	return &JobOrchestrator{
		config:    config,
		resolver:  deps.Resolver,
		invoker:   deps.Invoker,
		relocator: deps.Relocator,
		locker:    deps.Locker,
		mirror:    deps.Mirror,
		notifier:  deps.Notifier,
		slots:     slots,
		newID:     uuid.NewString,
	}, nil
}

// Separate runs one request to completion. The returned job is always
// terminal and is returned alongside any error so callers can report its ID.
func (o *JobOrchestrator) Separate(ctx context.Context, request separationentity.SeparationRequest) (*separationentity.Job, error) {
	if request.ModelName == "" {
		request.ModelName = o.config.DefaultModel
	}

	job := separationentity.NewJob(o.newID(), request)
	logger := log.WithFields(log.Fields{
		"jobID":     job.ID,
		"filename":  request.Filename,
		"modelName": job.ModelName,
	})
	logger.Info("Separation job accepted")

	err := o.run(ctx, job, logger)
	if err != nil {
		job.Fail(err)
		logger.WithField("errorKind", job.Error.Kind).Info("Separation job failed")
	} else {
		logger.WithField("stems", job.StemFiles).Info("Separation job succeeded")
	}

	if o.notifier != nil {
		o.notifier.JobFinished(ctx, job)
	}

	return job, err
}

func (o *JobOrchestrator) run(ctx context.Context, job *separationentity.Job, logger *log.Entry) error {
	if err := o.checkRequest(job); err != nil {
		return err
	}

	paths, err := o.resolver.Resolve(job.Request.Filename, job.ModelName)
	if err != nil {
		return err
	}

	if err := o.checkInput(paths.InputPath); err != nil {
		return err
	}

	if err := job.Validated(paths); err != nil {
		return err
	}

	release, err := o.locker.Lock(ctx, paths.FinalOutputPath, paths.ToolOutputPath)
	if err != nil {
		return lockError(err)
	}
	defer release()

	restore, err := o.relocator.ClearToolOutput(paths)
	if err != nil {
		return err
	}
	defer func() {
		if err := restore(); err != nil {
			cerr.Log(cerr.Field("job_id", job.ID).Wrap(err).Error("Failed to restore the tool output folder"))
		}
	}()

	if err := o.invoke(ctx, job); err != nil {
		return err
	}

	if err := job.Transition(separationentity.InvokedStatus); err != nil {
		return err
	}

	if err := o.relocator.Relocate(job.Paths); err != nil {
		return err
	}

	if err := job.Transition(separationentity.RelocatedStatus); err != nil {
		return err
	}
	logger.WithField("outputFolder", job.FinalOutputPath).Info("Output is in its final location")

	stems, err := o.relocator.EnumerateStems(job.FinalOutputPath)
	if err != nil {
		return err
	}
	job.StemFiles = stems

	downloads, err := o.downloads(ctx, job)
	if err != nil {
		return err
	}

	return job.Succeed(stems, downloads)
}

// checkRequest rejects values the tool would parse as options.
func (o *JobOrchestrator) checkRequest(job *separationentity.Job) error {
	errctx := cerr.Field("model_name", job.ModelName).Field("two_stems", job.Request.TwoStems)

	if strings.HasPrefix(job.ModelName, "-") {
		return separationerrors.Wrap(errctx.Error("Model name looks like an option"),
			separationerrors.InvalidRequest, "Invalid model name")
	}

	twoStems := job.Request.TwoStems
	if strings.HasPrefix(twoStems, "-") || strings.ContainsFunc(twoStems, unicode.IsSpace) {
		return separationerrors.Wrap(errctx.Error("Two stems must be a single stem name"),
			separationerrors.InvalidRequest, "Invalid stem name")
	}

	return o.checkAllowedModel(job.ModelName)
}

func (o *JobOrchestrator) checkAllowedModel(modelName string) error {
	if len(o.config.AllowedModels) == 0 {
		return nil
	}

	for _, allowed := range o.config.AllowedModels {
		if allowed == modelName {
			return nil
		}
	}

	return separationerrors.Wrap(
		cerr.Field("model_name", modelName).Field("allowed_models", o.config.AllowedModels).Error("Model is not allowed"),
		separationerrors.InvalidRequest,
		"Unsupported model")
}

// checkInput runs before the tool so that a missing file never costs an
// invocation. Symlinks are resolved so that a link inside the upload root
// cannot point the tool at a file outside of it.
func (o *JobOrchestrator) checkInput(inputPath string) error {
	errctx := cerr.Field("input_path", inputPath)

	fileInfo, err := os.Stat(inputPath)
	if err != nil {
		kind := separationerrors.UnexpectedError
		if errors.Is(err, fs.ErrNotExist) {
			kind = separationerrors.NotFound
		}
		return separationerrors.Wrap(errctx.Wrap(err).Error("Cannot access input file"), kind, "Input file check failed")
	}

	if !fileInfo.Mode().IsRegular() {
		return separationerrors.Wrap(errctx.Error("Input path is not a regular file"),
			separationerrors.NotFound, "Input file check failed")
	}

	realRoot, err := filepath.EvalSymlinks(o.resolver.UploadRoot())
	if err != nil {
		return separationerrors.Wrap(errctx.Wrap(err).Error("Failed to resolve the upload root"),
			separationerrors.UnexpectedError, "Input file check failed")
	}

	realInput, err := filepath.EvalSymlinks(inputPath)
	if err != nil {
		return separationerrors.Wrap(errctx.Wrap(err).Error("Failed to resolve the input path"),
			separationerrors.UnexpectedError, "Input file check failed")
	}

	if !pathresolver.IsDescendant(realRoot, realInput) {
		return separationerrors.Wrap(errctx.Field("real_path", realInput).Error("Input file links outside of the upload root"),
			separationerrors.InvalidPath, "Invalid filename")
	}

	return nil
}

func (o *JobOrchestrator) invoke(ctx context.Context, job *separationentity.Job) error {
	if o.slots != nil {
		if err := o.slots.Acquire(ctx, 1); err != nil {
			return separationerrors.FromContext(
				cerr.Field("job_id", job.ID).Wrap(err).Error("Gave up waiting for a free separation slot"),
				"Separation was interrupted")
		}
		defer o.slots.Release(1)
	}

	_, err := o.invoker.Invoke(ctx, invoker.Invocation{
		InputPath: job.InputPath,
		ModelName: job.ModelName,
		TwoStems:  job.Request.TwoStems,
	})

	return err
}

func (o *JobOrchestrator) downloads(ctx context.Context, job *separationentity.Job) ([]separationentity.StemDownload, error) {
	if o.mirror != nil {
		return o.mirror.Upload(ctx, job)
	}

	return LocalDownloads(o.config.DownloadBaseURL, job)
}

// LocalDownloads builds links served from the processed root, mirroring the
// on-disk layout below the downloads route.
func LocalDownloads(baseURL string, job *separationentity.Job) ([]separationentity.StemDownload, error) {
	if baseURL == "" {
		baseURL = "/"
	}

	segments := []string{downloadsPrefix, job.ModelName}
	if job.SubNamespace != "" {
		segments = append(segments, strings.Split(filepath.ToSlash(job.SubNamespace), "/")...)
	}
	segments = append(segments, job.BaseName)

	downloads := make([]separationentity.StemDownload, 0, len(job.StemFiles))
	for _, stem := range job.StemFiles {
		stemURL, err := url.JoinPath(baseURL, append(segments, stem)...)
		if err != nil {
			return nil, separationerrors.Wrap(
				cerr.Field("base_url", baseURL).Field("stem", stem).Wrap(err).Error("Failed to build download URL"),
				separationerrors.UnexpectedError,
				"Failed to build download links")
		}

		downloads = append(downloads, separationentity.StemDownload{
			Name: stem,
			URL:  stemURL,
		})
	}

	return downloads, nil
}

func lockError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return separationerrors.FromContext(err, "Gave up waiting for the output location")
	}

	return separationerrors.Wrap(err, separationerrors.UnexpectedError, "Failed to lock the output location")
}
