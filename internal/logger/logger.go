// Package logger builds the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout in the given format ("text" or
// "json"). Debug output is never emitted in production, whatever the level.
func New(level, format, env string) (*logrus.Logger, error) {
	return newLogger(os.Stdout, level, format, env)
}

func newLogger(out io.Writer, level, format, env string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	if env == "production" && lvl > logrus.InfoLevel {
		lvl = logrus.InfoLevel
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}
