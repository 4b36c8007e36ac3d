//go:build !unix && !windows

package relocator

func isCrossDevice(err error) bool {
	return false
}
