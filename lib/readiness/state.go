// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"fmt"

	"github.com/harm-foundation/harm/lib/schema"
)

// State is the console's readiness.
type State int

const (
	// Idle is the state before the first evaluation.
	Idle State = iota
	// Loading means no config fetch has completed yet.
	Loading
	// NeedsSetup means the config is loaded but has no reforger path.
	NeedsSetup
	// Ready means the config is loaded and complete.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case NeedsSetup:
		return "needs-setup"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decide maps a config read to a State. loaded is the second result
// of configstore.Store.Read. Decide never returns Idle.
func Decide(config schema.AppConfig, loaded bool) State {
	if !loaded {
		return Loading
	}
	if !config.HasReforgerPath() {
		return NeedsSetup
	}
	return Ready
}
