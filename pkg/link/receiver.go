// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

// Inbound is one result of the receive path: a decoded message with its
// raw frame, or a decode/device error.
type Inbound struct {
	Time    time.Time
	Message wifly.Message
	Raw     []byte
	Err     error
}

// InboundHandler consumes receive results in decode order. Returning an
// error stops the receiver.
type InboundHandler func(ctx context.Context, in Inbound) error

// Receiver reads the device and feeds bytes through the frame decoder
type Receiver struct {
	conn    io.Reader
	decoder *wifly.Decoder
	logger  *zap.Logger
	now     func() time.Time
}

// NewReceiver creates a receiver over conn
func NewReceiver(conn io.Reader, logger *zap.Logger, opts ...wifly.DecoderOption) *Receiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Receiver{
		conn:    conn,
		decoder: wifly.NewDecoder(opts...),
		logger:  logger,
		now:     time.Now,
	}
}

// Run blocks reading the connection until it fails or ends.
//
// Framing errors are handed to handle and decoding continues. End of
// stream returns nil after reporting any open frame as truncated. Any
// other read error is reported as an ErrDevice failure and returned; if
// ctx was already cancelled the read error is treated as the shutdown
// signal and nil is returned.
func (r *Receiver) Run(ctx context.Context, handle InboundHandler) error {
	buf := make([]byte, 128)

	for {
		n, readErr := r.conn.Read(buf)
		for i := 0; i < n; i++ {
			msg, err := r.decoder.DecodeByte(buf[i])
			if err != nil {
				r.logger.Debug("framing error", zap.Error(err))
				if herr := handle(ctx, Inbound{Time: r.now(), Err: err}); herr != nil {
					return herr
				}
				continue
			}
			if msg == nil {
				continue
			}
			raw := append([]byte(nil), r.decoder.LastFrame()...)
			if herr := handle(ctx, Inbound{Time: r.now(), Message: *msg, Raw: raw}); herr != nil {
				return herr
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			if r.decoder.InFrame() {
				r.decoder.Reset()
				if herr := handle(ctx, Inbound{Time: r.now(), Err: wifly.ErrTruncatedFrame}); herr != nil {
					return herr
				}
			}
			r.logger.Info("link closed by peer")
			return nil
		}

		if ctx.Err() != nil {
			r.logger.Debug("receiver stopped", zap.NamedError("read", readErr))
			return nil
		}

		err := fmt.Errorf("%w: read: %w", wifly.ErrDevice, readErr)
		r.logger.Error("receive failed", zap.Error(err))
		_ = handle(ctx, Inbound{Time: r.now(), Err: err})
		return err
	}
}
