package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupFormats(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Output = &bytes.Buffer{}
			_, err := Setup(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Setup() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Config{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info record logged at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn record missing")
	}
}

func TestSecretMasking(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("key validated",
		"key", "super-secret-value",
		"override_key", "also-secret",
		"key_id", "master",
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if record["key"] != maskedValue {
		t.Errorf("key = %v, want masked", record["key"])
	}
	if record["override_key"] != maskedValue {
		t.Errorf("override_key = %v, want masked", record["override_key"])
	}
	if record["key_id"] != "master" {
		t.Errorf("key_id = %v, want passed through", record["key_id"])
	}
}

func TestMaskingPreservedOnWith(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.With("secret", "hunter2").Info("derived logger")

	if strings.Contains(buf.String(), "hunter2") {
		t.Error("secret survived With()")
	}
}
