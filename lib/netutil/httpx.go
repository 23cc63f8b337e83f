// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil reads the daemon API's HTTP responses with bounded
// memory.
//
// A misconfigured api_port can point the console at any local process,
// so no body is read past [MaxResponseSize].
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds a decoded response body.
const MaxResponseSize int64 = 16 << 20

// maxErrorBody bounds the body read for an error message.
const maxErrorBody = 4096

// ErrResponseTooLarge is returned by DecodeResponse for a body over
// MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// DecodeResponse JSON-decodes body into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return ErrResponseTooLarge
	}
	return json.Unmarshal(data, v)
}

// ErrorBody returns a one-line description of an error response: the
// "error" field of a JSON body like {"error": "..."}, else the body
// text itself, truncated. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "(empty body)"
	}
	return text
}
