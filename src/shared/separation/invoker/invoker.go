package invoker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/lib/executor"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

type Config struct {
	BinPath    string
	WorkingDir string
	Device     string
	ExtraArgs  []string
	// Timeout of zero leaves the invocation unbounded
	Timeout time.Duration
}

type Invocation struct {
	InputPath string
	ModelName string
	TwoStems  string
}

type Outcome struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ToolFailure carries the tool's stderr verbatim for diagnosis.
type ToolFailure struct {
	ExitCode int
	Stderr   string
}

func (t *ToolFailure) Error() string {
	return fmt.Sprintf("separation tool exited with code %d: %s", t.ExitCode, t.Stderr)
}

type SeparationInvoker struct {
	config        Config
	processedRoot string
	executor      executor.Executor
	stat          func(name string) (fs.FileInfo, error)
}

func NewSeparationInvoker(config Config, processedRoot string, executor executor.Executor) SeparationInvoker {
	return SeparationInvoker{
		config:        config,
		processedRoot: processedRoot,
		executor:      executor,
		stat:          os.Stat,
	}
}

// Invoke blocks until the separation tool terminates. The tool deposits its
// stems under the processed root by its own naming convention, the invoker
// never touches the output itself.
func (s SeparationInvoker) Invoke(ctx context.Context, invocation Invocation) (Outcome, error) {
	errctx := cerr.Field("input_path", invocation.InputPath).Field("model_name", invocation.ModelName)

	fileInfo, err := s.stat(invocation.InputPath)
	if err != nil {
		kind := separationerrors.UnexpectedError
		if errors.Is(err, fs.ErrNotExist) {
			kind = separationerrors.NotFound
		}
		return Outcome{}, separationerrors.Wrap(errctx.Wrap(err).Error("Cannot access input file"),
			kind, "Input file check failed")
	}

	if !fileInfo.Mode().IsRegular() {
		return Outcome{}, separationerrors.Wrap(errctx.Error("Input path is not a regular file"),
			separationerrors.NotFound, "Input file check failed")
	}

	if s.config.BinPath == "" {
		return Outcome{}, separationerrors.New(separationerrors.ToolUnavailable, "No separation tool binary is configured")
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	// separating is a lengthy process, if we want to halt now is the time
	if ctx.Err() != nil {
		return Outcome{}, separationerrors.FromContext(
			errctx.Wrap(ctx.Err()).Error("Context ended before separation could start"),
			"Separation was interrupted")
	}

	args := s.BuildArgs(invocation)
	errctx = errctx.Field("bin_path", s.config.BinPath).Field("args", args)

	logger := log.WithFields(log.Fields{
		"inputPath":     invocation.InputPath,
		"modelName":     invocation.ModelName,
		"processedRoot": s.processedRoot,
		"workingDir":    s.config.WorkingDir,
	})
	logger.Info("Running separation tool")

	cmd := s.executor.Command(ctx, s.config.BinPath, args...)
	if s.config.WorkingDir != "" {
		cmd.SetDir(s.config.WorkingDir)
	}

	start := time.Now()
	output, err := cmd.Run()
	outcome := Outcome{
		Stdout:   string(output.Stdout),
		Stderr:   string(output.Stderr),
		Duration: time.Since(start),
	}

	if err != nil {
		return outcome, classifyRunError(errctx.Field("tool_stderr", outcome.Stderr), err, outcome.Stderr)
	}

	logger.Debug(outcome.Stdout)
	logger.WithField("duration", outcome.Duration.String()).Info("Finished separation tool")

	return outcome, nil
}

// BuildArgs follows demucs' command line:
// demucs -n <model> -o <processed root> [-d device] [--two-stems stem] [extra...] <input>
func (s SeparationInvoker) BuildArgs(invocation Invocation) []string {
	args := []string{"-n", invocation.ModelName, "-o", s.processedRoot}

	if s.config.Device != "" {
		args = append(args, "-d", s.config.Device)
	}

	if invocation.TwoStems != "" {
		args = append(args, "--two-stems", invocation.TwoStems)
	}

	args = append(args, s.config.ExtraArgs...)
	return append(args, invocation.InputPath)
}

func classifyRunError(errctx cerr.Context, err error, stderr string) error {
	var startErr *executor.StartError
	var exitErr *executor.ExitError

	switch {
	case errors.As(err, &startErr):
		return separationerrors.Wrap(errctx.Wrap(err).Error("Separation tool could not be started"),
			separationerrors.ToolUnavailable, "Separation tool is unavailable")

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return separationerrors.FromContext(
			errctx.Wrap(err).Error("Separation tool was stopped before it finished"),
			"Separation was interrupted")

	case errors.As(err, &exitErr):
		toolFailure := &ToolFailure{ExitCode: exitErr.Code, Stderr: stderr}
		return separationerrors.Wrap(errctx.Wrap(toolFailure).Error("Error occurred while running the separation tool"),
			separationerrors.ExternalToolFailure, "Audio separation failed")

	default:
		return separationerrors.Wrap(errctx.Wrap(err).Error("Separation tool failed unexpectedly"),
			separationerrors.UnexpectedError, "Audio separation failed")
	}
}
