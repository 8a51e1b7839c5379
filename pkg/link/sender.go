// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

// ErrSenderStopped is returned by Send after the send loop has exited
var ErrSenderStopped = errors.New("sender stopped")

// DefaultQueueDepth is the outbound queue size used when none is given
const DefaultQueueDepth = 64

// Sender serializes outbound messages onto the device in FIFO order
type Sender struct {
	conn   io.Writer
	queue  chan wifly.Message
	done   chan struct{}
	logger *zap.Logger
}

// NewSender creates a sender with the given queue depth
func NewSender(conn io.Writer, depth int, logger *zap.Logger) *Sender {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		conn:   conn,
		queue:  make(chan wifly.Message, depth),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues a message, blocking while the queue is full
func (s *Sender) Send(ctx context.Context, m wifly.Message) error {
	select {
	case <-s.done:
		return ErrSenderStopped
	default:
	}

	select {
	case s.queue <- m:
		return nil
	case <-s.done:
		return ErrSenderStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned and nothing more will be written
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Run writes queued messages until ctx is cancelled or a write fails.
// Messages already queued at cancellation are still written. A write
// failure is returned wrapped in ErrDevice.
func (s *Sender) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		case m := <-s.queue:
			if err := s.write(m); err != nil {
				return err
			}
		}
	}
}

func (s *Sender) drain() error {
	for {
		select {
		case m := <-s.queue:
			if err := s.write(m); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Sender) write(m wifly.Message) error {
	frame := wifly.Encode(m)
	if _, err := s.conn.Write(frame); err != nil {
		err = fmt.Errorf("%w: write: %w", wifly.ErrDevice, err)
		s.logger.Error("send failed", zap.Stringer("message", m), zap.Error(err))
		return err
	}
	s.logger.Debug("sent", zap.Stringer("message", m), zap.String("frame", wifly.FormatHex(frame)))
	return nil
}
