// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/harm-foundation/harm/lib/codec"
)

// Wire names of the fields AppConfig interprets.
const (
	fieldReforgerPath = "reforger_path"
	fieldAPIPort      = "api_port"
)

// AppConfig is the singleton configuration record owned by the daemon.
//
// A nil or empty ReforgerPath means HARM has not been pointed at an
// Arma Reforger server binary yet. Every other key present in the
// encoded record lands in Extra and is written back unchanged.
type AppConfig struct {
	ReforgerPath *string
	APIPort      int
	Extra        map[string]any
}

// HasReforgerPath reports whether a non-empty server binary path is
// configured.
func (c AppConfig) HasReforgerPath() bool {
	return c.ReforgerPath != nil && *c.ReforgerPath != ""
}

// Path returns the configured reforger path, or "" when absent.
func (c AppConfig) Path() string {
	if c.ReforgerPath == nil {
		return ""
	}
	return *c.ReforgerPath
}

// WithReforgerPath returns a copy of c with the path replaced. The
// copy shares nothing with c.
func (c AppConfig) WithReforgerPath(path string) AppConfig {
	clone := c.Clone()
	clone.ReforgerPath = &path
	return clone
}

// Clone returns a deep copy of c.
func (c AppConfig) Clone() AppConfig {
	clone := AppConfig{APIPort: c.APIPort}
	if c.ReforgerPath != nil {
		path := *c.ReforgerPath
		clone.ReforgerPath = &path
	}
	if c.Extra != nil {
		clone.Extra = make(map[string]any, len(c.Extra))
		for key, value := range c.Extra {
			clone.Extra[key] = cloneValue(value)
		}
	}
	return clone
}

// Fields returns the flat key/value form of c: Extra overlaid with the
// interpreted fields. This is the form both encoders serialize.
func (c AppConfig) Fields() map[string]any {
	fields := make(map[string]any, len(c.Extra)+2)
	for key, value := range c.Extra {
		fields[key] = value
	}
	if c.ReforgerPath != nil {
		fields[fieldReforgerPath] = *c.ReforgerPath
	} else {
		fields[fieldReforgerPath] = nil
	}
	fields[fieldAPIPort] = c.APIPort
	return fields
}

// AppConfigFromFields builds an AppConfig from its flat form. api_port
// is required; reforger_path may be missing or null.
func AppConfigFromFields(fields map[string]any) (AppConfig, error) {
	var config AppConfig

	for key, value := range fields {
		switch key {
		case fieldReforgerPath:
			switch typed := value.(type) {
			case nil:
			case string:
				path := typed
				config.ReforgerPath = &path
			default:
				return AppConfig{}, fmt.Errorf("%s must be a string or null, got %T", fieldReforgerPath, value)
			}
		case fieldAPIPort:
		default:
			if config.Extra == nil {
				config.Extra = make(map[string]any)
			}
			config.Extra[key] = value
		}
	}

	raw, present := fields[fieldAPIPort]
	if !present {
		return AppConfig{}, fmt.Errorf("%s is required", fieldAPIPort)
	}
	port, err := portFromValue(raw)
	if err != nil {
		return AppConfig{}, err
	}
	config.APIPort = port

	return config, nil
}

// Validate checks the interpreted fields.
func (c AppConfig) Validate() error {
	if c.APIPort < 1 || c.APIPort > math.MaxUint16 {
		return fmt.Errorf("%s %d out of range 1-65535", fieldAPIPort, c.APIPort)
	}
	return nil
}

// MarshalJSON encodes the flat form.
func (c AppConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Fields())
}

// UnmarshalJSON decodes the flat form, keeping unknown keys in Extra.
// Integers in unknown keys keep their exact value; only numbers with a
// fraction or exponent become float64.
func (c *AppConfig) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after config object")
	}
	for key, value := range fields {
		fields[key] = exactNumbers(value)
	}
	decoded, err := AppConfigFromFields(fields)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// MarshalCBOR encodes the flat form deterministically.
func (c AppConfig) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(c.Fields())
}

// UnmarshalCBOR decodes the flat form, keeping unknown keys in Extra.
func (c *AppConfig) UnmarshalCBOR(data []byte) error {
	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return err
	}
	decoded, err := AppConfigFromFields(fields)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// exactNumbers replaces every json.Number inside value with int64 or
// uint64 when it is an integer in range, float64 otherwise. Both
// encoders write the native types back without loss.
func exactNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(typed.String(), 10, 64); err == nil {
			return n
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed
	case map[string]any:
		for key, nested := range typed {
			typed[key] = exactNumbers(nested)
		}
		return typed
	case []any:
		for i, nested := range typed {
			typed[i] = exactNumbers(nested)
		}
		return typed
	default:
		return value
	}
}

// portFromValue accepts the numeric types produced by JSON decoding
// (int64, uint64, float64) and fxamacker/cbor (uint64, int64) decoding
// into any.
func portFromValue(value any) (int, error) {
	var port int64
	switch typed := value.(type) {
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("%s must be an integer, got %v", fieldAPIPort, typed)
		}
		port = int64(typed)
	case uint64:
		if typed > math.MaxUint16 {
			return 0, fmt.Errorf("%s %d out of range", fieldAPIPort, typed)
		}
		port = int64(typed)
	case int64:
		port = typed
	case int:
		port = int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", fieldAPIPort, err)
		}
		port = parsed
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", fieldAPIPort, value)
	}
	if port < 0 || port > math.MaxUint16 {
		return 0, fmt.Errorf("%s %d out of range", fieldAPIPort, port)
	}
	return int(port), nil
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for key, nested := range typed {
			clone[key] = cloneValue(nested)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for index, nested := range typed {
			clone[index] = cloneValue(nested)
		}
		return clone
	default:
		return value
	}
}
