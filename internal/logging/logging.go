package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wtask/netube/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New - builds root logger for given setup.
// Returned closer releases log file if any, it is never nil.
func New(c config.Log, stdout io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, errors.Wrapf(err, "logging: invalid level %q", c.Level)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	var out io.Writer = stdout
	if c.Console {
		out = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	if c.File != "" {
		file := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
