// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	var page struct {
		NextPage string `json:"next_page"`
	}
	if err := DecodeResponse(strings.NewReader(`{"next_page":"b7"}`), &page); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if page.NextPage != "b7" {
		t.Errorf("next_page = %q", page.NextPage)
	}

	if err := DecodeResponse(strings.NewReader(`<html>`), &page); err == nil {
		t.Error("HTML body decoded without error")
	}
}

func TestDecodeResponseTooLarge(t *testing.T) {
	body := bytes.NewReader(bytes.Repeat([]byte(" "), int(MaxResponseSize)+1))
	var value any
	if err := DecodeResponse(body, &value); !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("DecodeResponse = %v, want ErrResponseTooLarge", err)
	}
}

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json error field", `{"error": "server not found: 42"}`, "server not found: 42"},
		{"plain text", "404 page not found\n", "404 page not found"},
		{"json without error", `{"status": 500}`, `{"status": 500}`},
		{"empty", "", "(empty body)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ErrorBody(strings.NewReader(test.body)); got != test.want {
				t.Errorf("ErrorBody = %q, want %q", got, test.want)
			}
		})
	}

	long := ErrorBody(strings.NewReader(strings.Repeat("x", 10000)))
	if len(long) != maxErrorBody {
		t.Errorf("long body length = %d, want %d", len(long), maxErrorBody)
	}
}
