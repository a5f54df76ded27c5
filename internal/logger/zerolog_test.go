package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.DebugLevel)

	log.Info("TestComponent", "something happened", map[string]interface{}{
		"sheet": "scan_01.png",
		"score": 0.87,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["component"] != "TestComponent" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["message"] != "something happened" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["sheet"] != "scan_01.png" {
		t.Errorf("sheet = %v", entry["sheet"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestZerologAdapterError(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.DebugLevel)

	log.Error("TestComponent", errors.New("marker vanished"), nil)

	if !strings.Contains(buf.String(), "marker vanished") {
		t.Errorf("error not in output: %s", buf.String())
	}
}

func TestZerologAdapterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.WarnLevel)

	log.Debug("TestComponent", "noise", nil)
	log.Info("TestComponent", "noise", nil)
	if buf.Len() != 0 {
		t.Errorf("below-level events leaked: %s", buf.String())
	}

	log.Warning("TestComponent", "kept", nil)
	if buf.Len() == 0 {
		t.Error("warning should pass a warn-level filter")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
