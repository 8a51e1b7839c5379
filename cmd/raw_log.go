// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var (
	rawLogEstimate bool
	rawLogRecord   string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw message log in human-readable format",
	Long: `Continuously decode and display WiFly rover messages as they arrive.

Each message is shown with timestamp, tag, command and decoded data. With
--estimate the dead-reckoned pose and wall points are printed as they change.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogEstimate, "estimate", false, "Also print pose and wall updates")
	rawLogCmd.Flags().StringVar(&rawLogRecord, "record", "", "Write a session recording to this file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(ctx, logger, rawLogRecord)
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("Roverstation - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	for u := range s.station.Updates() {
		printRawLogUpdate(u)
	}
	return <-done
}

func printRawLogUpdate(u link.Update) {
	switch u.Kind {
	case link.UpdateMessage:
		fmt.Print(wifly.FormatMessage(u.Message, u.Time))
	case link.UpdateError:
		fmt.Printf("[ERROR] %v\n", u.Err)
	case link.UpdatePose:
		if rawLogEstimate {
			fmt.Printf("[%s] POSE %s\n\n", u.Time.Format("15:04:05.000"), u.Pose)
		}
	case link.UpdateWall:
		if rawLogEstimate {
			fmt.Printf("[%s] WALL front=(%.1f, %.1f) rear=(%.1f, %.1f)\n\n",
				u.Time.Format("15:04:05.000"),
				u.Wall.Front.X, u.Wall.Front.Y, u.Wall.Rear.X, u.Wall.Rear.Y)
		}
	}
}
