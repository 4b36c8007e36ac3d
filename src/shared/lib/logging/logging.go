package logging

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/mattn/go-isatty"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
)

const (
	FormatAuto = "auto"
	FormatCLI  = "cli"
	FormatJSON = "json"
	FormatText = "text"
)

// Configure installs the process wide apex handler. The auto format picks
// the cli handler on a terminal and json everywhere else.
func Configure(writer io.Writer, level string, format string) error {
	parsedLevel, err := log.ParseLevel(level)
	if err != nil {
		return cerr.Field("level", level).Wrap(err).Error("Invalid log level")
	}

	handler, err := NewHandler(writer, format)
	if err != nil {
		return err
	}

	log.SetHandler(handler)
	log.SetLevel(parsedLevel)
	return nil
}

func NewHandler(writer io.Writer, format string) (log.Handler, error) {
	if format == FormatAuto {
		format = FormatJSON
		if IsTerminal(writer) {
			format = FormatCLI
		}
	}

	switch format {
	case FormatCLI:
		return cli.New(writer), nil
	case FormatJSON:
		return json.New(writer), nil
	case FormatText:
		return text.New(writer), nil
	default:
		return nil, cerr.Field("format", format).Error("Unknown log format")
	}
}

func IsTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}

	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
