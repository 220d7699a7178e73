// Package logging wires this module's structured diagnostics and its
// short, human-facing startup banners. Structured logs (one line per
// event, leveled, optionally to a file) go through hclog, the same
// logger interface github.com/nabbar/golib bridges in its own logger
// package; colored one-line banners for the interactive operator use
// fatih/color.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
)

// New builds the root structured logger. An unrecognized level name
// falls back to Info with a warning, per SPEC_FULL §6 (a bad log level
// must never be a fatal CLI error).
func New(name string, levelName string, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(levelName)
	fellBack := false
	if level == hclog.NoLevel {
		level = hclog.Info
		fellBack = true
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: out,
	})

	if fellBack && levelName != "" {
		logger.Warn("unrecognized log level, falling back to info", "given", levelName)
	}
	return logger
}

// OpenLogFile opens path for appending, creating it if necessary.
func OpenLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Banner prints a short colored startup line to stderr.
func Banner(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintln(os.Stderr, "aliceserver: "+fmt.Sprintf(format, args...))
}

// BannerOk prints a short colored success line to stderr.
func BannerOk(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintln(os.Stderr, "aliceserver: "+fmt.Sprintf(format, args...))
}
