// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import (
	"errors"
	"fmt"
)

// ErrFraming marks a recoverable framing failure. The partial frame has been
// discarded and the decoder is scanning for the next START byte.
var ErrFraming = errors.New("framing error")

// ErrTruncatedFrame is reported when the stream ends inside a frame
var ErrTruncatedFrame = fmt.Errorf("%w: truncated frame at end of stream", ErrFraming)

// ErrDevice wraps read/write failures of the underlying transport. It is
// fatal to the loop that observed it.
var ErrDevice = errors.New("device error")

// IsFramingError reports whether err is a recoverable framing error
func IsFramingError(err error) bool {
	return errors.Is(err, ErrFraming)
}
