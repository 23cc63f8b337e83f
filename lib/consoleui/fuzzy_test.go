// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import "testing"

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pattern string
		match   bool
	}{
		{"substring", "Everon Conflict", "conflict", true},
		{"non-contiguous", "Everon Game Master", "egm", true},
		{"case-insensitive", "ARLAND TRAINING", "arland", true},
		{"no match", "Everon Conflict", "xyz", false},
		{"out of order", "Everon", "nove", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := fuzzyMatch(test.text, []rune(test.pattern), nil)
			if got := result.Score > 0; got != test.match {
				t.Errorf("match = %v (score %d), want %v", got, result.Score, test.match)
			}
			if test.match && len(result.Positions) != len([]rune(test.pattern)) {
				t.Errorf("positions = %v, want %d entries", result.Positions, len(test.pattern))
			}
		})
	}
}

func TestFuzzyMatchEmptyPattern(t *testing.T) {
	if result := fuzzyMatch("anything", nil, nil); result.Score <= 0 {
		t.Errorf("empty pattern score = %d, want > 0", result.Score)
	}
}
