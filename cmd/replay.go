// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/recording"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var replayMessages bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Recompute the pose track from a session recording",
	Long: `Read a recording made with --record and run its received messages
through a fresh estimator, printing every pose and wall update.

Commands in the recording set the wheel signs exactly as they did live, so
the replayed track matches the live one unless the estimator changed.
No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayMessages, "messages", false, "Also print each replayed message")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := recording.NewReader(bufio.NewReader(f))
	if err != nil {
		return err
	}

	h := r.Header()
	fmt.Printf("Roverstation - Replay\n")
	fmt.Printf("Recording: %s\n", args[0])
	if h.Source != "" {
		fmt.Printf("Source: %s\n", h.Source)
	}
	fmt.Println()

	est := rover.NewEstimator()
	stats := wifly.NewStatistics()
	var geometryErrors int

	err = recording.Replay(r.Entries(), est, func(step recording.ReplayStep) bool {
		m := step.Entry.WiflyMessage()
		ts := step.Entry.Timestamp()
		stats.Update(&m, nil, wifly.ValidateMessage(m))

		if replayMessages {
			fmt.Print(wifly.FormatMessage(m, ts))
		}
		if step.Err != nil {
			geometryErrors++
			fmt.Printf("[%s] [ERROR] %v\n", ts.Format("15:04:05.000"), step.Err)
			return true
		}
		if p := step.Observation.Pose; p != nil {
			fmt.Printf("[%s] POSE %s\n", ts.Format("15:04:05.000"), *p)
		}
		if w := step.Observation.Wall; w != nil && replayMessages {
			fmt.Printf("[%s] WALL front=(%.1f, %.1f) rear=(%.1f, %.1f)\n",
				ts.Format("15:04:05.000"), w.Front.X, w.Front.Y, w.Rear.X, w.Rear.Y)
		}
		return true
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nMessages: %d (sensor %d, encoder %d)\n", stats.TotalFrames, stats.SensorReadings, stats.EncoderReadings)
	fmt.Printf("Phase: %s\n", est.Phase())
	fmt.Printf("Final pose: %s\n", est.Pose())
	if geometryErrors > 0 {
		fmt.Printf("Rejected updates: %d\n", geometryErrors)
	}
	return nil
}

