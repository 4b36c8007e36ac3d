package jobusecase_test

import (
	"context"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/server/internal/errors/api"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/errors"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/usecase"
	"github.com/veedubyou/stem-splitter/src/server/internal/job/usecase/jobusecasefakes"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

var _ = Describe("Usecase", func() {
	var (
		fakeSeparator *jobusecasefakes.FakeSeparator
		usecase       jobusecase.Usecase
		request       separationentity.SeparationRequest
		job           *separationentity.Job
	)

	BeforeEach(func() {
		fakeSeparator = &jobusecasefakes.FakeSeparator{}
		usecase = jobusecase.NewUsecase(fakeSeparator)
		request = separationentity.SeparationRequest{Filename: "alice/song.mp3", ModelName: "htdemucs"}
		job = separationentity.NewJob("job-1", request)
	})

	It("passes the request through and returns the job", func() {
		fakeSeparator.SeparateReturns(job, nil)

		result, apiErr := usecase.Separate(context.Background(), request)
		Expect(apiErr).To(BeNil())
		Expect(result).To(Equal(job))

		Expect(fakeSeparator.SeparateCallCount()).To(Equal(1))
		_, passed := fakeSeparator.SeparateArgsForCall(0)
		Expect(passed).To(Equal(request))
	})

	It("maps the failure kind to the error code and user message", func() {
		fakeSeparator.SeparateReturns(job, separationerrors.New(separationerrors.NotFound, "no such file"))

		result, apiErr := usecase.Separate(context.Background(), request)
		Expect(result).To(Equal(job))
		Expect(apiErr).NotTo(BeNil())
		Expect(apiErr.ErrorCode).To(Equal(api.ErrorCode("not_found")))
		Expect(apiErr.UserMessage).To(Equal(joberrors.UserMessageFor(separationerrors.NotFound)))
		Expect(apiErr.Error()).To(ContainSubstring("no such file"))
		Expect(cerr.CollectFields(apiErr)).To(HaveKeyWithValue("job_id", "job-1"))
	})

	It("reports unmarked errors as unknown", func() {
		fakeSeparator.SeparateReturns(nil, errors.New("something odd"))

		result, apiErr := usecase.Separate(context.Background(), request)
		Expect(result).To(BeNil())
		Expect(apiErr.ErrorCode).To(Equal(api.DefaultErrorCode))
		Expect(apiErr.UserMessage).To(Equal(joberrors.UserMessageFor(separationerrors.UnexpectedError)))
	})
})
