package separationerrors

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
	"github.com/veedubyou/stem-splitter/src/shared/lib/errors/mark"
)

type Kind string

const (
	NotFound            Kind = "not_found"
	ToolUnavailable     Kind = "tool_unavailable"
	ExternalToolFailure Kind = "external_tool_failure"
	OutputMissing       Kind = "output_missing"
	RelocationFailure   Kind = "relocation_failure"
	InvalidPath         Kind = "invalid_path"
	InvalidRequest      Kind = "invalid_request"
	Timeout             Kind = "timeout"
	Cancelled           Kind = "cancelled"
	MirrorFailure       Kind = "mirror_failure"
	UnexpectedError     Kind = "unexpected_error"
)

// checked in order by KindOf
var allKinds = []Kind{
	NotFound,
	ToolUnavailable,
	ExternalToolFailure,
	OutputMissing,
	RelocationFailure,
	InvalidPath,
	InvalidRequest,
	Timeout,
	Cancelled,
	MirrorFailure,
	UnexpectedError,
}

var kindMarks = func() map[Kind]error {
	marks := make(map[Kind]error, len(allKinds))
	for _, kind := range allKinds {
		marks[kind] = errors.New("separation error: " + string(kind))
	}
	return marks
}()

func Kinds() []Kind {
	kinds := make([]Kind, len(allKinds))
	copy(kinds, allKinds)
	return kinds
}

func New(kind Kind, msg string) error {
	return mark.Message(markFor(kind), msg)
}

func Wrap(err error, kind Kind, msg string) error {
	return mark.Wrap(err, markFor(kind), msg)
}

func Is(err error, kind Kind) bool {
	return markers.Is(err, markFor(kind))
}

// FromContext marks an error caused by an ended context as Timeout when a
// deadline passed and as Cancelled otherwise.
func FromContext(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, Timeout, msg)
	}

	return Wrap(err, Cancelled, msg)
}

// KindOf never returns an empty kind: unmarked errors are UnexpectedError.
func KindOf(err error) Kind {
	for _, kind := range allKinds {
		if Is(err, kind) {
			return kind
		}
	}

	return UnexpectedError
}

func markFor(kind Kind) error {
	m, ok := kindMarks[kind]
	if !ok {
		return kindMarks[UnexpectedError]
	}
	return m
}
