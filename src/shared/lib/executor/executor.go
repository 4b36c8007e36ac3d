package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultWaitDelay = 5 * time.Second

type Executor interface {
	Command(ctx context.Context, name string, args ...string) Command
}

type Command interface {
	SetDir(dir string)
	Run() (Output, error)
}

type Output struct {
	Stdout []byte
	Stderr []byte
}

// StartError means the process never ran: missing binary, permissions, bad
// working directory and the like.
type StartError struct {
	Bin string
	Err error
}

func (s *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", s.Bin, s.Err)
}

func (s *StartError) Unwrap() error {
	return s.Err
}

// ExitError means the process ran and exited unsuccessfully.
type ExitError struct {
	Bin  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Bin, e.Code)
}

var _ Executor = BinaryFileExecutor{}

// BinaryFileExecutor runs real binaries. Each command gets its own process
// group, which is killed when the context ends and again after the leader
// exits so no stray children outlive the command.
type BinaryFileExecutor struct {
	WaitDelay time.Duration
}

func (b BinaryFileExecutor) Command(ctx context.Context, name string, args ...string) Command {
	cmd := exec.CommandContext(ctx, name, args...)
	configureProcessGroup(cmd)

	cmd.WaitDelay = b.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	return &binaryCommand{
		ctx: ctx,
		bin: name,
		cmd: cmd,
	}
}

type binaryCommand struct {
	ctx context.Context
	bin string
	cmd *exec.Cmd
}

func (b *binaryCommand) SetDir(dir string) {
	b.cmd.Dir = dir
}

func (b *binaryCommand) Run() (Output, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	b.cmd.Stdout = stdout
	b.cmd.Stderr = stderr

	if err := b.cmd.Start(); err != nil {
		return Output{}, &StartError{Bin: b.bin, Err: err}
	}

	err := b.cmd.Wait()
	cleanupProcessGroup(b.cmd)

	output := Output{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		return output, nil
	}

	if ctxErr := b.ctx.Err(); ctxErr != nil {
		return output, errors.Wrapf(ctxErr, "%s was interrupted", b.bin)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &ExitError{Bin: b.bin, Code: exitErr.ExitCode()}
	}

	return output, errors.Wrapf(err, "Failed while waiting for %s", b.bin)
}
