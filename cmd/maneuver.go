// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
)

var (
	maneuverRecord string
	maneuverSettle time.Duration
)

var maneuverCmd = &cobra.Command{
	Use:   "maneuver",
	Short: "Run the scripted self-test maneuver without the console",
	Long: `Run the five-phase self-test drive and log what the rover reports.

The rover drives forward, backs up, turns left and backs up again at gear 2,
then stops. Pose and wall updates are logged throughout. The command exits
after the stop command has been sent and the settle time has passed, or on
Ctrl+C, which also stops the rover.`,
	RunE: runManeuver,
}

func init() {
	rootCmd.AddCommand(maneuverCmd)
	maneuverCmd.Flags().StringVar(&maneuverRecord, "record", "", "Write a session recording to this file")
	maneuverCmd.Flags().DurationVar(&maneuverSettle, "settle", 2*time.Second, "Keep logging this long after the final stop")
}

func runManeuver(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, logger, maneuverRecord)
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("Roverstation - Self-Test Maneuver\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Press Ctrl+C to abort\n\n")

	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	if err := s.station.Submit(ctx, link.StartManeuver()); err != nil {
		cancel()
		return multierr.Combine(err, <-done)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var settle <-chan time.Time
	for {
		select {
		case u, ok := <-s.station.Updates():
			if !ok {
				return <-done
			}
			logManeuverUpdate(logger, u)
			if u.Kind == link.UpdateManeuver && u.Maneuver == maneuver.PhaseDone && settle == nil {
				settle = time.After(maneuverSettle)
			}

		case <-interrupt:
			logger.Warn("aborting maneuver")
			stopCtx, stopCancel := context.WithTimeout(ctx, time.Second)
			if err := s.station.Submit(stopCtx, link.StopManeuver()); err != nil {
				logger.Error("stop not sent", zap.Error(err))
			}
			stopCancel()
			settle = time.After(maneuverSettle)
			signal.Stop(interrupt)

		case <-settle:
			if st, err := s.finalState(ctx, time.Second); err == nil {
				fmt.Printf("\nFinal pose: %s\n", st.Pose)
				fmt.Print(st.Stats.String())
			}
			cancel()
			return <-done
		}
	}
}

func logManeuverUpdate(logger *zap.Logger, u link.Update) {
	switch u.Kind {
	case link.UpdateCommand:
		logger.Info("command",
			zap.Stringer("control", u.Command.Control),
			zap.String("payload", fmt.Sprintf("% X", u.Command.Payload[:])))
	case link.UpdateManeuver:
		logger.Info("phase", zap.Stringer("phase", u.Maneuver))
	case link.UpdatePose:
		logger.Info("pose",
			zap.Float64("x", u.Pose.X),
			zap.Float64("y", u.Pose.Y),
			zap.Float64("deg", u.Pose.Degrees()))
	case link.UpdateWall:
		logger.Debug("wall",
			zap.Object("front", pointMarshaler(u.Wall.Front)),
			zap.Object("rear", pointMarshaler(u.Wall.Rear)))
	case link.UpdateError:
		logger.Warn("link", zap.Error(u.Err))
	}
}

type pointMarshaler rover.Point

func (p pointMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("x", p.X)
	enc.AddFloat64("y", p.Y)
	return nil
}
