package sysutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func restoreLogging(t *testing.T) {
	t.Helper()
	lvl, lg := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(lvl)
		log.Logger = lg
	})
}

func TestSetLogLevel_AllVariants(t *testing.T) {
	restoreLogging(t)

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger_JSONAndPretty(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	SetupLogger(&buf, "warn", false)
	log.Info().Msg("dropped")
	log.Warn().Str("job", "renovacoes").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["job"] != "renovacoes" || entry["message"] != "kept" || entry["time"] == nil {
		t.Fatalf("entry = %v", entry)
	}

	buf.Reset()
	SetupLogger(&buf, "info", true)
	log.Info().Msg("hello")
	if out := buf.String(); !strings.Contains(out, "hello") || strings.HasPrefix(out, "{") {
		t.Fatalf("pretty output = %q", out)
	}
}

func TestLoadLocation(t *testing.T) {
	restoreLogging(t)
	log.Logger = zerolog.Nop()

	if LoadLocation("") != time.UTC || LoadLocation("Nowhere/Atlantis") != time.UTC {
		t.Fatalf("fallback should be UTC")
	}
	if loc := LoadLocation("UTC"); loc.String() != "UTC" {
		t.Fatalf("UTC = %v", loc)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if FirstNonEmpty("", "  ", "v1.2.0", "dev") != "v1.2.0" {
		t.Fatalf("FirstNonEmpty picked the wrong value")
	}
	if FirstNonEmpty() != "" || FirstNonEmpty(" ", "") != "" {
		t.Fatalf("FirstNonEmpty of blanks should be empty")
	}
}
