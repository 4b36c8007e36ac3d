package gateway

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/veedubyou/stem-splitter/src/server/api_error"
	"github.com/veedubyou/stem-splitter/src/server/internal/errors/api"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/errors"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

var httpStatusCodeMap = map[api.ErrorCode]int{
	api.DefaultErrorCode:                       http.StatusInternalServerError,
	joberrors.BadRequestDataCode:               http.StatusBadRequest,
	code(separationerrors.NotFound):            http.StatusNotFound,
	code(separationerrors.InvalidPath):         http.StatusBadRequest,
	code(separationerrors.InvalidRequest):      http.StatusBadRequest,
	code(separationerrors.Timeout):             http.StatusGatewayTimeout,
	code(separationerrors.ToolUnavailable):     http.StatusInternalServerError,
	code(separationerrors.ExternalToolFailure): http.StatusInternalServerError,
	code(separationerrors.OutputMissing):       http.StatusInternalServerError,
	code(separationerrors.RelocationFailure):   http.StatusInternalServerError,
	code(separationerrors.Cancelled):           http.StatusInternalServerError,
	code(separationerrors.MirrorFailure):       http.StatusInternalServerError,
}

func code(kind separationerrors.Kind) api.ErrorCode {
	return joberrors.CodeFor(kind)
}

func StatusCode(errorCode api.ErrorCode) (int, bool) {
	statusCode, ok := httpStatusCodeMap[errorCode]
	return statusCode, ok
}

func ErrorResponse(c echo.Context, err *api.Error) error {
	statusCode, ok := StatusCode(err.ErrorCode)
	if !ok {
		msg := fmt.Sprintf("Error code %s has no HTTP status code mapping", err.ErrorCode)
		panic(msg)
	}

	return c.JSON(statusCode, api_error.JSONAPIError{
		Code:         string(err.ErrorCode),
		Msg:          err.UserMessage,
		ErrorDetails: err.Error(),
		RequestID:    c.Response().Header().Get(echo.HeaderXRequestID),
	})
}
