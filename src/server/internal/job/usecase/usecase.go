package jobusecase

import (
	"context"

	"github.com/veedubyou/stem-splitter/src/server/internal/errors/api"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/errors"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Separator
type Separator interface {
	Separate(ctx context.Context, request separationentity.SeparationRequest) (*separationentity.Job, error)
}

type Usecase struct {
	separator Separator
}

func NewUsecase(separator Separator) Usecase {
	return Usecase{
		separator: separator,
	}
}

// Separate blocks for the whole job. The job is returned even on failure so
// that its ID can be reported.
func (u Usecase) Separate(ctx context.Context, request separationentity.SeparationRequest) (*separationentity.Job, *api.Error) {
	job, err := u.separator.Separate(ctx, request)
	if err != nil {
		kind := separationerrors.KindOf(err)
		if job != nil {
			err = cerr.Field("job_id", job.ID).Wrap(err).Error("Separation job failed")
		}

		return job, api.CommitError(err,
			joberrors.CodeFor(kind),
			joberrors.UserMessageFor(kind))
	}

	return job, nil
}
