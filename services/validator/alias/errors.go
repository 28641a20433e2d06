// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alias

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSet is returned for a set line that does not follow its
	// grammar.
	ErrMalformedSet = errors.New("malformed alias set")

	// ErrMalformedBinder is returned for an element that is neither
	// '@global' nor 'fn::%local'.
	ErrMalformedBinder = errors.New("malformed binder")

	// ErrUnknownFormat is returned when auto-detection cannot tell the
	// dump format.
	ErrUnknownFormat = errors.New("unknown alias set format")

	// ErrNoFunction is returned for an AliasSet line outside any
	// "Alias sets for function" block.
	ErrNoFunction = errors.New("alias set outside a function block")
)

// LineError describes one rejected line of an alias dump.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

// Error implements error.
func (e *LineError) Error() string {
	return fmt.Sprintf("alias line %d: %v: %q", e.Line, e.Err, e.Raw)
}

// Unwrap returns the cause.
func (e *LineError) Unwrap() error {
	return e.Err
}
