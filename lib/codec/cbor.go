// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	// encoding is RFC 8949 core deterministic encoding.
	encoding = mustMode(cbor.CoreDetEncOptions().EncMode())

	// decoding turns untyped maps into map[string]any so decoded
	// AppConfig extras can be written back out as JSON.
	decoding = mustMode(cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode())
)

func mustMode[M any](mode M, err error) M {
	if err != nil {
		panic("codec: building CBOR mode: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) { return encoding.Marshal(v) }

// Unmarshal decodes data into v. Fields without a counterpart in v
// are skipped.
func Unmarshal(data []byte, v any) error { return decoding.Unmarshal(data, v) }

// Aliases so callers never import fxamacker/cbor directly.
type (
	Encoder    = cbor.Encoder
	Decoder    = cbor.Decoder
	RawMessage = cbor.RawMessage
)

// NewEncoder writes deterministic CBOR items to w.
func NewEncoder(w io.Writer) *Encoder { return encoding.NewEncoder(w) }

// NewDecoder reads CBOR items from r.
func NewDecoder(r io.Reader) *Decoder { return decoding.NewDecoder(r) }
