package events_test

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/stem-splitter/src/shared/lib/rabbitmq/rabbitmqfakes"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
	"github.com/veedubyou/stem-splitter/src/shared/separation/events"
	. "github.com/veedubyou/stem-splitter/src/shared/testing"
)

var _ = Describe("Notifier", func() {
	var (
		publisher *rabbitmqfakes.FakePublisher
		notifier  events.Notifier
		job       *separationentity.Job
	)

	BeforeEach(func() {
		publisher = &rabbitmqfakes.FakePublisher{}
		notifier = events.NewNotifier(publisher)

		job = separationentity.NewJob("job-id", separationentity.SeparationRequest{
			Filename:  "alice/song.mp3",
			ModelName: "htdemucs",
		})
		Expect(job.Validated(separationentity.Paths{
			BaseName:        "song",
			SubNamespace:    "alice",
			FinalOutputPath: "/processed/htdemucs/alice/song",
		})).To(Succeed())
	})

	publishedMessage := func() (amqp091.Publishing, events.JobFinishedMessage) {
		Expect(publisher.PublishCallCount()).To(Equal(1))
		_, msg := publisher.PublishArgsForCall(0)
		return msg, DecodeJSON[events.JobFinishedMessage](bytes.NewReader(msg.Body))
	}

	It("announces a succeeded job", func() {
		Expect(job.Transition(separationentity.InvokedStatus)).To(Succeed())
		Expect(job.Transition(separationentity.RelocatedStatus)).To(Succeed())
		Expect(job.Succeed([]string{"bass.wav", "vocals.wav"}, nil)).To(Succeed())

		notifier.JobFinished(context.Background(), job)

		msg, body := publishedMessage()
		Expect(msg.Type).To(Equal(events.SucceededType))
		Expect(msg.MessageId).To(Equal("job-id"))
		Expect(msg.ContentType).To(Equal("application/json"))
		Expect(body).To(Equal(events.JobFinishedMessage{
			JobID:        "job-id",
			Filename:     "alice/song.mp3",
			ModelName:    "htdemucs",
			OutputFolder: "/processed/htdemucs/alice/song",
			Stems:        []string{"bass.wav", "vocals.wav"},
		}))
	})

	It("announces a failed job with its error kind", func() {
		job.Fail(separationerrors.New(separationerrors.ExternalToolFailure, "demucs exited with code 1"))

		notifier.JobFinished(context.Background(), job)

		msg, body := publishedMessage()
		Expect(msg.Type).To(Equal(events.FailedType))
		Expect(body.ErrorKind).To(Equal(separationerrors.ExternalToolFailure))
		Expect(body.ErrorDetail).To(ContainSubstring("demucs exited with code 1"))
		Expect(body.OutputFolder).To(BeEmpty())
		Expect(body.Stems).To(BeEmpty())
	})

	It("publishes even when the request context is cancelled", func() {
		job.Fail(separationerrors.New(separationerrors.Cancelled, "client went away"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var publishErr error
		var hasDeadline bool
		publisher.PublishCalls(func(publishCtx context.Context, _ amqp091.Publishing) error {
			publishErr = publishCtx.Err()
			_, hasDeadline = publishCtx.Deadline()
			return nil
		})

		notifier.JobFinished(ctx, job)

		Expect(publisher.PublishCallCount()).To(Equal(1))
		Expect(publishErr).NotTo(HaveOccurred())
		By("bounding the publish so a stuck broker cannot hold the job")
		Expect(hasDeadline).To(BeTrue())
	})

	It("only logs a failed publish", func() {
		publisher.PublishReturns(errors.New("connection refused"))
		job.Fail(separationerrors.New(separationerrors.NotFound, "missing"))

		Expect(func() { notifier.JobFinished(context.Background(), job) }).NotTo(Panic())
		Expect(publisher.PublishCallCount()).To(Equal(1))
	})

	It("does not announce a job in progress", func() {
		notifier.JobFinished(context.Background(), job)
		Expect(publisher.PublishCallCount()).To(Equal(0))
	})

	It("drops events without a publisher", func() {
		disabled := events.NewNotifier(nil)
		Expect(disabled.Enabled()).To(BeFalse())

		job.Fail(separationerrors.New(separationerrors.NotFound, "missing"))
		disabled.JobFinished(context.Background(), job)
	})
})
