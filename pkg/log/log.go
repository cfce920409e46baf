// Package log builds the structured logger shared by every daemon
// component.
package log

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Options controls how the root logger is constructed.
type Options struct {
	Debug     bool
	ConfigDir string
	Version   string
	Commit    string
}

// New returns a logrus entry pre-populated with build metadata. Records are
// JSON. In debug mode they go to "$ConfigDir/kanshi.log", or to stderr when
// ConfigDir is empty or the file cannot be opened; otherwise only warnings
// and above are kept and sent to stderr.
func New(opts Options) *logrus.Entry {
	var logger *logrus.Logger
	if opts.Debug || os.Getenv("DEBUG") == "TRUE" {
		logger = newDevelopmentLogger(opts.ConfigDir)
	} else {
		logger = newProductionLogger()
	}
	logger.Formatter = &logrus.JSONFormatter{}

	return logger.WithFields(logrus.Fields{
		"debug":   opts.Debug,
		"version": opts.Version,
		"commit":  opts.Commit,
	})
}

func getLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(configDir string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(getLogLevel())

	if configDir == "" {
		logger.SetOutput(os.Stderr)
		return logger
	}

	file, err := os.OpenFile(filepath.Join(configDir, "kanshi.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.SetOutput(os.Stderr)
		return logger
	}
	logger.SetOutput(file)
	return logger
}

func newProductionLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	logger.SetOutput(os.Stderr)
	return logger
}
