package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func restoreLogger(t *testing.T) {
	saved, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(level)
	})
}

func TestInitLoggerJSON(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	initLogger(&buf, "DEBUG", "json")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("level = %s", zerolog.GlobalLevel())
	}
	log.Debug().Str("input", "a.aoe2record").Msg("seat assigned")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not a JSON line: %q", buf.String())
	}
	if line["message"] != "seat assigned" || line["input"] != "a.aoe2record" || line["level"] != "debug" {
		t.Errorf("line = %v", line)
	}
}

func TestInitLoggerConsole(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	initLogger(&buf, "bogus", "text")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %s", zerolog.GlobalLevel())
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q", out)
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Error("console format wrote JSON")
	}
}
