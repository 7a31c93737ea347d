package telemetry

import (
	"bytes"
	"encoding/json"
	"log"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		level   string
		message string
	}{
		{name: "bracketed", in: "[WARN] pool nearly full", level: "WARN", message: "pool nearly full"},
		{name: "colon", in: "ERROR: socket closed", level: "ERROR", message: "socket closed"},
		{name: "leading word", in: "INFO listener ready", level: "INFO", message: "listener ready"},
		{name: "plain", in: "offered 10.0.0.10", level: "INFO", message: "offered 10.0.0.10"},
		{name: "empty", in: "", level: "INFO", message: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, message := parseLevel(tt.in)
			if level != tt.level || message != tt.message {
				t.Errorf("parseLevel(%q) = (%q, %q), want (%q, %q)", tt.in, level, message, tt.level, tt.message)
			}
		})
	}
}

func TestJSONLogWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(newJSONLogWriter("leased", &buf), "", 0)
	logger.Printf("INFO offered %s to %s", "10.0.0.10", "01:aa:bb:cc:dd:ee:01")

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "leased" {
		t.Errorf("service = %q", entry["service"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %q", entry["level"])
	}
	if entry["msg"] != "offered 10.0.0.10 to 01:aa:bb:cc:dd:ee:01" {
		t.Errorf("msg = %q", entry["msg"])
	}
	if entry["ts"] == "" {
		t.Error("missing timestamp")
	}
}
