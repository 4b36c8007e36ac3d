package testlib

import (
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
)

func ExpectSuccess[T any](t T, err error) T {
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return t
}

func ExpectType[T any](thing any) T {
	ExpectWithOffset(1, thing).NotTo(BeNil())
	realThing, ok := thing.(T)
	ExpectWithOffset(1, ok).To(BeTrue(), "expected %T to be a %T", thing, realThing)
	return realThing
}

// ExpectKind asserts that err failed with the given separation kind.
func ExpectKind(err error, kind separationerrors.Kind) {
	ExpectWithOffset(1, err).To(HaveOccurred())
	ExpectWithOffset(1, separationerrors.KindOf(err)).To(Equal(kind), "error: %v", err)
}
