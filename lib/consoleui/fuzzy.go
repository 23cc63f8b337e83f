// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is one fuzzy match. Score is zero when the pattern did
// not match. Positions are rune offsets into the text.
type FuzzyResult struct {
	Score     int
	Positions []int
}

var fuzzyInit sync.Once

// fuzzyMatch matches pattern against text with fzf's V2 algorithm,
// case-insensitively. An empty pattern matches everything with score
// 1. slab may be nil.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Score: 1}
	}
	fuzzyInit.Do(func() { algo.Init("default") })

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}

	match := FuzzyResult{Score: int(result.Score)}
	if positions != nil {
		match.Positions = append([]int(nil), *positions...)
	}
	return match
}
