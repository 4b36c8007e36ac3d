package separationerrors_test

import (
	"context"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

var _ = Describe("Separation errors", func() {
	It("detects the kind through further wrapping", func() {
		err := separationerrors.New(separationerrors.NotFound, "Input is missing")
		err = cerr.Field("filename", "song.mp3").Wrap(err).Error("Job failed")
		err = errors.Wrap(err, "Request failed")

		Expect(separationerrors.KindOf(err)).To(Equal(separationerrors.NotFound))
		Expect(separationerrors.Is(err, separationerrors.NotFound)).To(BeTrue())
		Expect(separationerrors.Is(err, separationerrors.OutputMissing)).To(BeFalse())
	})

	It("keeps the wrapped cause reachable", func() {
		cause := errors.New("permission denied")
		err := separationerrors.Wrap(cause, separationerrors.RelocationFailure, "Relocation failed")

		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("permission denied"))
		Expect(separationerrors.KindOf(err)).To(Equal(separationerrors.RelocationFailure))
	})

	It("treats unmarked errors as unexpected", func() {
		Expect(separationerrors.KindOf(errors.New("boom"))).To(Equal(separationerrors.UnexpectedError))
	})

	It("distinguishes every kind from every other kind", func() {
		for _, kind := range separationerrors.Kinds() {
			err := separationerrors.New(kind, "failure")
			Expect(separationerrors.KindOf(err)).To(Equal(kind))
		}
	})

	Describe("FromContext", func() {
		It("marks a passed deadline as a timeout", func() {
			err := separationerrors.FromContext(errors.Wrap(context.DeadlineExceeded, "waiting"), "Interrupted")
			Expect(separationerrors.KindOf(err)).To(Equal(separationerrors.Timeout))
		})

		It("marks anything else as cancelled", func() {
			err := separationerrors.FromContext(context.Canceled, "Interrupted")
			Expect(separationerrors.KindOf(err)).To(Equal(separationerrors.Cancelled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
