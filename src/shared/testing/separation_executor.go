package testlib

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/veedubyou/stem-splitter/src/shared/lib/executor"
)

var DefaultStems = []string{"drums.wav", "bass.wav", "other.wav", "vocals.wav"}

type ExecutedCommand struct {
	Name string
	Args []string
	Dir  string
}

// Flag returns the value following flag, empty if absent.
func (e ExecutedCommand) Flag(flag string) string {
	for i := 0; i < len(e.Args)-1; i++ {
		if e.Args[i] == flag {
			return e.Args[i+1]
		}
	}
	return ""
}

func (e ExecutedCommand) InputPath() string {
	if len(e.Args) == 0 {
		return ""
	}
	return e.Args[len(e.Args)-1]
}

var _ executor.Executor = &DummySeparationExecutor{}

// DummySeparationExecutor stands in for demucs: it writes stems to
// <-o>/<-n>/<input base name>/ the way the real tool does.
type DummySeparationExecutor struct {
	Stems    []string
	ExitCode int
	Stderr   string
	StartErr error
	NoOutput bool
	// Block holds every run until the channel is closed or the context ends
	Block chan struct{}
	// Started receives one value per run, before blocking
	Started chan struct{}

	mutex    sync.Mutex
	commands []ExecutedCommand
}

func NewDummySeparationExecutor() *DummySeparationExecutor {
	return &DummySeparationExecutor{
		Stems: DefaultStems,
	}
}

func (d *DummySeparationExecutor) Command(ctx context.Context, name string, args ...string) executor.Command {
	return &dummyCommand{
		ctx:      ctx,
		executor: d,
		command: ExecutedCommand{
			Name: name,
			Args: append([]string{}, args...),
		},
	}
}

func (d *DummySeparationExecutor) Commands() []ExecutedCommand {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]ExecutedCommand{}, d.commands...)
}

func (d *DummySeparationExecutor) RunCount() int {
	return len(d.Commands())
}

func (d *DummySeparationExecutor) record(command ExecutedCommand) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.commands = append(d.commands, command)
}

type dummyCommand struct {
	ctx      context.Context
	executor *DummySeparationExecutor
	command  ExecutedCommand
}

func (d *dummyCommand) SetDir(dir string) {
	d.command.Dir = dir
}

func (d *dummyCommand) Run() (executor.Output, error) {
	e := d.executor
	e.record(d.command)

	if e.StartErr != nil {
		return executor.Output{}, &executor.StartError{Bin: d.command.Name, Err: e.StartErr}
	}

	if e.Started != nil {
		e.Started <- struct{}{}
	}

	if e.Block != nil {
		select {
		case <-e.Block:
		case <-d.ctx.Done():
			return executor.Output{}, errors.Wrapf(d.ctx.Err(), "%s was interrupted", d.command.Name)
		}
	}

	output := executor.Output{
		Stdout: []byte("separated " + d.command.InputPath()),
		Stderr: []byte(e.Stderr),
	}

	if e.ExitCode != 0 {
		return output, &executor.ExitError{Bin: d.command.Name, Code: e.ExitCode}
	}

	if e.NoOutput {
		return output, nil
	}

	input := filepath.Base(d.command.InputPath())
	baseName := strings.TrimSuffix(input, filepath.Ext(input))
	outputDir := filepath.Join(d.command.Flag("-o"), d.command.Flag("-n"), baseName)
	WriteStems(outputDir, e.Stems...)

	return output, nil
}
