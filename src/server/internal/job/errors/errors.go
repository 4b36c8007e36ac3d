package joberrors

import (
	"github.com/veedubyou/stem-splitter/src/server/internal/errors/api"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

const (
	BadRequestDataCode = api.ErrorCode("bad_request_data")
)

// CodeFor exposes the failure kind itself as the API error code.
func CodeFor(kind separationerrors.Kind) api.ErrorCode {
	if kind == separationerrors.UnexpectedError {
		return api.DefaultErrorCode
	}
	return api.ErrorCode(kind)
}

var userMessages = map[separationerrors.Kind]string{
	separationerrors.NotFound:            "The requested file could not be found",
	separationerrors.ToolUnavailable:     "The separation tool is not available on this server",
	separationerrors.ExternalToolFailure: "The separation tool failed to process the file",
	separationerrors.OutputMissing:       "The separation tool did not produce any stems",
	separationerrors.RelocationFailure:   "The stems could not be moved to their destination",
	separationerrors.InvalidPath:         "The filename or model name is not a valid path",
	separationerrors.InvalidRequest:      "The separation request is invalid",
	separationerrors.Timeout:             "The separation took too long and was stopped",
	separationerrors.Cancelled:           "The separation was cancelled",
	separationerrors.MirrorFailure:       "The stems could not be copied to remote storage",
	separationerrors.UnexpectedError:     "Unknown error: the separation failed. Please contact the developer",
}

func UserMessageFor(kind separationerrors.Kind) string {
	msg, ok := userMessages[kind]
	if !ok {
		return userMessages[separationerrors.UnexpectedError]
	}
	return msg
}
