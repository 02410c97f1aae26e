package conf

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger from the log configuration
func NewLogger(c LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	name := strings.ToLower(c.Level)
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(c.Format, "json") {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}
