// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harm-foundation/harm/lib/testutil"
)

func newFile(t *testing.T) *File {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "config.json"), 10625, testutil.DiscardLogger())
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	config, err := newFile(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.HasReforgerPath() || config.APIPort != 10625 {
		t.Errorf("config = %+v, want defaults", config)
	}
}

func TestSaveLoadPreservesUnknownFields(t *testing.T) {
	file := newFile(t)
	config, _ := file.Load()
	config.Extra = map[string]any{
		"window":   map[string]any{"width": int64(1280)},
		"steam_id": uint64(76561198000000001),
	}
	config = config.WithReforgerPath("/srv/reforger")

	if err := file.Save(config); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := file.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Path() != "/srv/reforger" || loaded.APIPort != 10625 {
		t.Errorf("loaded = %+v", loaded)
	}
	window, ok := loaded.Extra["window"].(map[string]any)
	if !ok || window["width"] != int64(1280) {
		t.Errorf("window = %#v", loaded.Extra["window"])
	}
	if id := loaded.Extra["steam_id"]; id != int64(76561198000000001) {
		t.Errorf("steam_id = %#v, want 76561198000000001", id)
	}
	data, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"steam_id": 76561198000000001`) {
		t.Errorf("saved file lost integer precision:\n%s", data)
	}

	// A second cycle must not drift either.
	if err := file.Save(loaded); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	again, _ := file.Load()
	if id := again.Extra["steam_id"]; id != int64(76561198000000001) {
		t.Errorf("steam_id after second cycle = %#v", id)
	}

	entries, _ := os.ReadDir(filepath.Dir(file.Path()))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only config.json", len(entries))
	}
}

func TestLoadAcceptsCommentsAndTrailingCommas(t *testing.T) {
	file := newFile(t)
	content := `{
  // edited by hand
  "reforger_path": "/opt/reforger",
  "api_port": 8080,
}
`
	if err := os.WriteFile(file.Path(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := file.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Path() != "/opt/reforger" || config.APIPort != 8080 {
		t.Errorf("config = %+v", config)
	}
}

func TestLoadMalformedFallsBackToDefaults(t *testing.T) {
	for name, content := range map[string]string{
		"not json":      "reforger_path = /opt",
		"missing port":  `{"reforger_path": "/opt"}`,
		"port as text":  `{"api_port": "eighty"}`,
		"port too high": `{"api_port": 99999}`,
	} {
		t.Run(name, func(t *testing.T) {
			file := newFile(t)
			if err := os.WriteFile(file.Path(), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			config, err := file.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if config.HasReforgerPath() || config.APIPort != 10625 {
				t.Errorf("config = %+v, want defaults", config)
			}
		})
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	file := newFile(t)
	config := file.Default()
	config.APIPort = 0
	if err := file.Save(config); err == nil || !strings.Contains(err.Error(), "api_port") {
		t.Errorf("Save = %v, want api_port error", err)
	}
}
