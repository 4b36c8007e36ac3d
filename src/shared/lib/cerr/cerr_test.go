package cerr_test

import (
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
)

var _ = Describe("Cerr", func() {
	var cause error

	BeforeEach(func() {
		cause = errors.New("disk on fire")
	})

	It("wraps the cause into the message chain", func() {
		err := cerr.Field("path", "/tmp/x").Wrap(cause).Error("Failed to write")
		Expect(err.Error()).To(Equal("Failed to write: disk on fire"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("creates a fresh error without a cause", func() {
		err := cerr.Error("Nothing to do")
		Expect(err.Error()).To(Equal("Nothing to do"))
		Expect(cerr.CollectFields(err)).To(BeEmpty())
	})

	It("keeps fields immutable between contexts", func() {
		base := cerr.Field("a", 1)
		first := base.Field("b", 2).Error("first")
		second := base.Field("c", 3).Error("second")

		Expect(cerr.CollectFields(first)).To(Equal(cerr.F{"a": 1, "b": 2}))
		Expect(cerr.CollectFields(second)).To(Equal(cerr.F{"a": 1, "c": 3}))
	})

	It("collects fields across layers with outer layers winning", func() {
		inner := cerr.Fields(cerr.F{"path": "inner", "model": "htdemucs"}).Wrap(cause).Error("inner")
		wrapped := errors.Wrap(inner, "middle")
		outer := cerr.Field("path", "outer").Wrap(wrapped).Error("outer")

		Expect(cerr.CollectFields(outer)).To(Equal(cerr.F{
			"path":  "outer",
			"model": "htdemucs",
		}))
		Expect(outer.Error()).To(Equal("outer: middle: inner: disk on fire"))
	})

	It("ignores nil errors when logging", func() {
		Expect(func() { cerr.Log(nil) }).NotTo(Panic())
	})
})
