// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/roverstation/pkg/link"
)

var driveRecord string

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Interactive console for driving the rover",
	Long: `Drive the rover from an interactive terminal UI.

Keys:
  Arrows  direction (forward, backward, left, right)
  0-5     gear
  .       stop
  Space   brake (gear 0)
  s / x   start / stop the self-test maneuver
  q       quit (stops the rover first)

The console shows the estimated pose, the last wall contact points, a
top-down map of the field, link statistics and an event log.

Logs are discarded unless --log-file is given, so they do not draw over
the console.

Supports both serial and WebSocket connections.`,
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.Flags().StringVar(&driveRecord, "record", "", "Write a session recording to this file")
}

func runDrive(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, logger, driveRecord)
	if err != nil {
		return err
	}
	defer s.close()

	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	submit := func(intent link.Intent) tea.Cmd {
		return func() tea.Msg {
			sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
			defer sendCancel()
			if err := s.station.Submit(sendCtx, intent); err != nil {
				return submitFailedMsg{err: err}
			}
			return nil
		}
	}

	m := initialDriveModel(s.info, s.station.Updates(), submit)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, tuiErr := p.Run()

	// The mailbox is FIFO: once this query answers, the stop sent on quit
	// is in the send queue, which is drained before the link closes.
	if _, err := s.finalState(ctx, time.Second); err != nil {
		logger.Debug("station not flushed", zap.Error(err))
	}
	cancel()
	runErr := <-done

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	if runErr != nil && !errors.Is(runErr, errLinkClosed) {
		logger.Error("link failed", zap.Error(runErr))
		return runErr
	}
	return nil
}
