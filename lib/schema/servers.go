// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ServerSummary is one registered dedicated server as listed by the
// daemon's HTTP API. Config is an opaque nested blob.
type ServerSummary struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Config map[string]ConfigValue `json:"config"`
}

// ServerListPage is one page of GET /servers. Data is in the order the
// daemon returned it; NextPage is empty on the last page.
type ServerListPage struct {
	NextPage string          `json:"next_page"`
	Data     []ServerSummary `json:"data"`
}

// ConfigValue is a server config entry: either a plain string or one
// level of string-keyed strings. Exactly one of Text and Fields is
// meaningful; Fields != nil selects the map form.
type ConfigValue struct {
	Text   string
	Fields map[string]string
}

// TextValue returns a ConfigValue holding a string.
func TextValue(text string) ConfigValue { return ConfigValue{Text: text} }

// MapValue returns a ConfigValue holding a string map.
func MapValue(fields map[string]string) ConfigValue {
	if fields == nil {
		fields = map[string]string{}
	}
	return ConfigValue{Fields: fields}
}

// IsMap reports whether the value is the map form.
func (v ConfigValue) IsMap() bool { return v.Fields != nil }

// MarshalJSON encodes a string or an object.
func (v ConfigValue) MarshalJSON() ([]byte, error) {
	if v.Fields != nil {
		return json.Marshal(v.Fields)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a JSON string or an object of strings.
func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty config value")
	}
	switch trimmed[0] {
	case '{':
		fields := map[string]string{}
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("config value object: %w", err)
		}
		*v = ConfigValue{Fields: fields}
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*v = ConfigValue{Text: text}
	default:
		return fmt.Errorf("config value must be a string or an object, got %s", trimmed)
	}
	return nil
}
