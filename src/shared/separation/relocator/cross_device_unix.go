//go:build unix

package relocator

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
