package jobgateway

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/veedubyou/stem-splitter/src/server/internal/errors/api"
	"github.com/veedubyou/stem-splitter/src/server/internal/errors/gateway"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/errors"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/usecase"
	"github.com/veedubyou/stem-splitter/src/server/internal/lib/request"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
)

type Gateway struct {
	usecase jobusecase.Usecase
}

func NewGateway(usecase jobusecase.Usecase) Gateway {
	return Gateway{
		usecase: usecase,
	}
}

func (g Gateway) Separate(c echo.Context) error {
	ctx := request.Context(c)

	separationRequest := separationentity.SeparationRequest{}
	if err := c.Bind(&separationRequest); err != nil {
		err = errors.Wrap(err, "Failed to bind request body to separation request")
		apiErr := api.CommitError(err,
			joberrors.BadRequestDataCode,
			"The separation request was malformed")
		return gateway.ErrorResponse(c, apiErr)
	}

	separationRequest.Filename = strings.TrimSpace(separationRequest.Filename)
	separationRequest.ModelName = strings.TrimSpace(separationRequest.ModelName)
	separationRequest.TwoStems = strings.TrimSpace(separationRequest.TwoStems)

	job, apiErr := g.usecase.Separate(ctx, separationRequest)
	if job != nil {
		request.SetJobID(c, job.ID)
	}

	if apiErr != nil {
		cerr.Log(apiErr.InternalError)
		return gateway.ErrorResponse(c, apiErr.Wrap("Failed to separate stems"))
	}

	return c.JSON(http.StatusOK, job.Result())
}
