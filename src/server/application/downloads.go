package application

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// serveDownloads serves produced stems laid out as
// <model>/<namespace>/<base name>/<stem> below processedRoot. Dot-prefixed
// segments hold lock files and folders that are still being moved, they are
// never served.
func serveDownloads(processedRoot string) echo.HandlerFunc {
	return func(c echo.Context) error {
		stemPath, err := url.PathUnescape(c.Param("*"))
		if err != nil {
			return echo.ErrNotFound
		}

		for _, segment := range strings.Split(filepath.ToSlash(stemPath), "/") {
			if strings.HasPrefix(segment, ".") {
				return echo.ErrNotFound
			}
		}

		return c.File(filepath.Join(processedRoot, filepath.Clean("/"+stemPath)))
	}
}
