package config

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLevel accepts the logrus level names, case-insensitively.
func ParseLevel(level string) (logrus.Level, error) {
	return logrus.ParseLevel(strings.TrimSpace(level))
}

// NewLogger builds the process logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)

	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return l, nil
}
