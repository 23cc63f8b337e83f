// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package appconfig persists the daemon's AppConfig record as a JSON
// file.
//
// The file is meant to be hand-editable, so it is read through jsonc:
// comments and trailing commas are accepted. A missing file yields the
// defaults. A file that cannot be parsed also yields the defaults,
// with a warning, so a bad edit never keeps the daemon from starting;
// the next successful update overwrites it.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/harm-foundation/harm/lib/schema"
)

// File is the on-disk AppConfig. Safe for concurrent use.
type File struct {
	path        string
	defaultPort int
	logger      *slog.Logger

	mu sync.Mutex
}

// New returns a File at path. defaultPort is the api_port of the
// default record.
func New(path string, defaultPort int, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &File{path: path, defaultPort: defaultPort, logger: logger}
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Default returns the record used when the file is missing or
// unreadable: no reforger path and the default api_port.
func (f *File) Default() schema.AppConfig {
	return schema.AppConfig{APIPort: f.defaultPort}
}

// Load reads the record. It returns the defaults when the file does
// not exist or does not parse; only I/O errors other than "not exist"
// are returned.
func (f *File) Load() (schema.AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Info("app config file missing, using defaults", "path", f.path)
		return f.Default(), nil
	}
	if err != nil {
		return schema.AppConfig{}, fmt.Errorf("reading app config: %w", err)
	}

	var config schema.AppConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		f.logger.Warn("app config file unreadable, using defaults",
			"path", f.path,
			"error", err,
		)
		return f.Default(), nil
	}
	if err := config.Validate(); err != nil {
		f.logger.Warn("app config file invalid, using defaults",
			"path", f.path,
			"error", err,
		)
		return f.Default(), nil
	}
	return config, nil
}

// Save writes config atomically: a temporary file in the same
// directory is written, synced, and renamed over the old one.
func (f *File) Save(config schema.AppConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config.Fields(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding app config: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	directory := filepath.Dir(f.path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	temporary, err := os.CreateTemp(directory, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temporary app config: %w", err)
	}
	defer os.Remove(temporary.Name())

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing app config: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing app config: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing app config: %w", err)
	}
	if err := os.Rename(temporary.Name(), f.path); err != nil {
		return fmt.Errorf("replacing app config: %w", err)
	}
	return nil
}
