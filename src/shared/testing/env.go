package testlib

import (
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
)

// SetTestEnv makes request handlers pass the request context through as is.
func SetTestEnv() {
	env.SetTest()
	ExpectWithOffset(1, env.Get()).To(Equal(env.Test))
}
