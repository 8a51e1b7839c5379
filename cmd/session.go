// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/recording"
)

// errLinkClosed ends a session whose peer closed the stream
var errLinkClosed = errors.New("link closed by rover")

// session is one open link: receive loop, send loop and the station that
// owns the rover model, plus an optional recording.
type session struct {
	conn     link.Connection
	info     string
	logger   *zap.Logger
	sender   *link.Sender
	receiver *link.Receiver
	station  *link.Station
	record   *os.File
}

// openSession connects using the connection flags. recordPath may be empty.
func openSession(ctx context.Context, logger *zap.Logger, recordPath string) (*session, error) {
	conn, info, err := OpenConnection(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(conn, info, logger, recordPath)
}

func newSession(conn link.Connection, info string, logger *zap.Logger, recordPath string) (*session, error) {
	s := &session{
		conn:     conn,
		info:     info,
		logger:   logger,
		sender:   link.NewSender(conn, link.DefaultQueueDepth, logger.Named("sender")),
		receiver: link.NewReceiver(conn, logger.Named("receiver"), decoderOptions()...),
	}

	var opts []link.StationOption
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create recording: %w", err)
		}
		w, err := recording.NewWriter(f, info, time.Now())
		if err != nil {
			return nil, multierr.Combine(err, f.Close(), conn.Close())
		}
		s.record = f
		opts = append(opts, link.WithRecorder(w))
	}

	s.station = link.NewStation(s.sender, logger.Named("station"), opts...)
	return s, nil
}

// run starts the link workers and blocks until ctx is cancelled or one of
// them fails. Closing the connection is what stops the receive loop.
func (s *session) run(parent context.Context) error {
	g, ctx := errgroup.WithContext(parent)

	g.Go(func() error { return s.sender.Run(ctx) })
	g.Go(func() error { return s.station.Run(ctx) })
	g.Go(func() error {
		err := s.receiver.Run(ctx, s.station.Deliver)
		if err == nil && ctx.Err() == nil {
			return errLinkClosed
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		<-s.sender.Done()
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close connection", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case parent.Err() != nil && (errors.Is(err, link.ErrStationStopped) || errors.Is(err, link.ErrSenderStopped)):
		// Workers racing the shutdown
		return nil
	}
	return err
}

// finalState discards any further updates and asks the station for its
// state. Use it once the caller has stopped reading Updates.
func (s *session) finalState(ctx context.Context, timeout time.Duration) (link.State, error) {
	go func() {
		for range s.station.Updates() {
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.station.State(ctx)
}

// close releases the recording file; the connection is closed by run
func (s *session) close() error {
	if s.record == nil {
		return nil
	}
	return multierr.Combine(s.record.Sync(), s.record.Close())
}
