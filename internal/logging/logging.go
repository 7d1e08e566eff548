// Package logging builds the logrus loggers used across symbol-takeoff.
//
// Loggers are constructed, not global: the CLI builds one from config and
// hands it to the engine, the server and the adapters.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers need not import logrus for simple use.
type Fields = logrus.Fields

// Options configures New.
type Options struct {
	// Level is a logrus level name; empty means "info".
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=panic fatal error warn warning info debug trace"`

	// File, when set, adds a rotating log file next to Output.
	File string `yaml:"file" json:"file"`

	// NoColors disables ANSI colours on Output.
	NoColors bool `yaml:"no_colors" json:"no_colors"`

	// ReportCaller adds the calling file, line and function to each entry.
	ReportCaller bool `yaml:"report_caller" json:"report_caller"`

	// Output defaults to stderr. Stdout carries MCP traffic in serve mode
	// and must stay clean.
	Output io.Writer `yaml:"-" json:"-"`
}

// New returns a configured logger.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&formatter.Formatter{
		NoColors:              opts.NoColors,
		TimestampFormat:       "02 Jan 06 - 15:04:05",
		HideKeys:              false,
		CallerFirst:           true,
		CustomCallerFormatter: callerFormatter(opts.NoColors),
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(opts.ReportCaller)
	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func callerFormatter(noColors bool) func(*runtime.Frame) string {
	return func(f *runtime.Frame) string {
		s := strings.Split(f.Function, ".")
		funcName := s[len(s)-1]
		if noColors {
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		}
		return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
	}
}
