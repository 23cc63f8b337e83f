// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"testing"
)

func TestServerListPageDecode(t *testing.T) {
	input := `{
		"next_page": "",
		"data": [
			{"id": "s2", "name": "Bravo", "config": {"bindAddress": "0.0.0.0", "game": {"name": "Bravo", "maxPlayers": "64"}}},
			{"id": "s1", "name": "Alpha", "config": {}}
		]
	}`

	var page ServerListPage
	if err := json.Unmarshal([]byte(input), &page); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("got %d servers, want 2", len(page.Data))
	}
	if page.Data[0].ID != "s2" || page.Data[1].ID != "s1" {
		t.Errorf("order not preserved: %s, %s", page.Data[0].ID, page.Data[1].ID)
	}

	bind := page.Data[0].Config["bindAddress"]
	if bind.IsMap() || bind.Text != "0.0.0.0" {
		t.Errorf("bindAddress = %+v, want text 0.0.0.0", bind)
	}
	game := page.Data[0].Config["game"]
	if !game.IsMap() || game.Fields["maxPlayers"] != "64" {
		t.Errorf("game = %+v, want map with maxPlayers=64", game)
	}
}

func TestConfigValueRejectsNumbers(t *testing.T) {
	var value ConfigValue
	if err := json.Unmarshal([]byte(`42`), &value); err == nil {
		t.Error("numeric config value should be rejected")
	}
}

func TestConfigValueEncode(t *testing.T) {
	encoded, err := json.Marshal(map[string]ConfigValue{
		"a": TextValue("x"),
		"b": MapValue(nil),
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(encoded) != `{"a":"x","b":{}}` {
		t.Errorf("encoded %s", encoded)
	}
}
