package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.WarnLevel)

	var buf bytes.Buffer
	if err := setupLogging(&buf, "DEBUG"); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	log.Debug().Str("path", "a.jpg").Msg("item written")
	if out := buf.String(); !strings.Contains(out, "item written") || !strings.Contains(out, "a.jpg") {
		t.Errorf("debug output = %q", out)
	}

	buf.Reset()
	if err := setupLogging(&buf, ""); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("default level output = %q", out)
	}

	if err := setupLogging(&buf, "bogus"); err == nil {
		t.Errorf("unknown level accepted")
	}
}
