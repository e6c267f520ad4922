package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a text logger writing to w (stderr when nil) at the given
// level. An unknown level falls back to info and is reported once.
func NewLogger(level string, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.WithError(err).Warnf("unknown log level %q, using info", level)
		return log
	}
	log.SetLevel(lvl)
	return log
}
