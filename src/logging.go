package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging routes diagnostics to a console writer at the given level
func setupLogging(w io.Writer, level string) error {
	if w == nil {
		w = os.Stderr
	}
	lvl := zerolog.WarnLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		lvl = parsed
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	return nil
}
