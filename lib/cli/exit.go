// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
)

// ExitError ends the process with Code and prints nothing; the command
// has already written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns Code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitStatus reports err on w and returns the code the process should
// exit with. A nil error is status 0.
func ExitStatus(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code
	}
	fmt.Fprintf(w, "error: %v\n", err)
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
