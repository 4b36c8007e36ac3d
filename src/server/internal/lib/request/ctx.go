package request

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
)

func Context(c echo.Context) context.Context {
	switch env.Get() {
	case env.Production, env.Test:
		return c.Request().Context()

	case env.Development:
		// a client hanging up while debugging should not kill the separation
		return context.WithoutCancel(c.Request().Context())

	default:
		panic("Unrecognized environment")
	}
}

func SetJobID(c echo.Context, jobID string) {
	c.Response().Header().Set(echo.HeaderXRequestID, jobID)
}
