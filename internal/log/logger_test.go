// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestReconfigureOutput(t *testing.T) {
	var buf bytes.Buffer
	Reconfigure(Config{
		Level:   "debug",
		Output:  &buf,
		Service: "fep-test",
		Version: "v0.0.0-test",
	})
	defer Reconfigure(Config{})

	l := WithComponent("engine")
	l.Info().
		Str(FieldEvent, "test.emit").
		Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "fep-test" {
		t.Errorf("service = %v, want fep-test", entry["service"])
	}
	if entry["version"] != "v0.0.0-test" {
		t.Errorf("version = %v, want v0.0.0-test", entry["version"])
	}
	if entry["component"] != "engine" {
		t.Errorf("component = %v, want engine", entry["component"])
	}
	if entry["event"] != "test.emit" {
		t.Errorf("event = %v, want test.emit", entry["event"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}

func TestConfigureIsIdempotent(t *testing.T) {
	var first, second bytes.Buffer
	Reconfigure(Config{Output: &first, Service: "one"})
	defer Reconfigure(Config{})

	// Configure after the logger exists must not replace it.
	Configure(Config{Output: &second, Service: "two"})

	b := Base()
	b.Info().Msg("ping")
	if first.Len() == 0 {
		t.Error("expected output on the first writer")
	}
	if second.Len() != 0 {
		t.Error("Configure must not override an existing logger")
	}
}
