// Package logging configures zerolog and the HTTP request logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a service logger writing to stdout: human-readable console
// output in development or on a terminal, JSON lines otherwise.
func New(service, env string) zerolog.Logger {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return newLogger(os.Stdout, service, env == "development" || tty)
}

// NewWithWriter is New over an arbitrary writer; only the env decides the
// output format.
func NewWithWriter(w io.Writer, service, env string) zerolog.Logger {
	return newLogger(w, service, env == "development")
}

func newLogger(w io.Writer, service string, console bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
}
