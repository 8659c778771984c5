// ABOUTME: Logger construction from configuration
// ABOUTME: Text or JSON logrus output to stderr or an append-only log file
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Resonate-Protocol/aptest/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// New builds the process logger from cfg and applies the same settings to the
// logrus standard logger. The returned closer releases the log file, if any.
func New(fs afero.Fs, cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := fs.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = f
	}

	var formatter logrus.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	}
	if cfg.JSON {
		formatter = &logrus.JSONFormatter{}
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(formatter)
	log.SetLevel(level)

	logrus.SetOutput(out)
	logrus.SetFormatter(formatter)
	logrus.SetLevel(level)

	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
