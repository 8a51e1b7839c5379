// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and anomalous messages",
	Long: `Track framing errors, unknown messages, and invalid values with statistics.

This command validates each message and detects:
  - Framing errors (truncated frames, bad LEN, START inside a frame)
  - Unknown tags or commands, and commands sent under the wrong tag
  - Invalid values (PWM direction bytes other than 0 or 1)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid messages too.

Framing errors are ignored until the first valid frame, since the link
usually starts mid-frame.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(ctx, logger, "")
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("Roverstation - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	stats := wifly.NewStatistics()

	// Sync tracking - ignore framing errors until first valid frame
	synchronized := false
	skipped := 0

	for {
		select {
		case u, ok := <-s.station.Updates():
			if !ok {
				return <-done
			}
			switch u.Kind {
			case link.UpdateError:
				if wifly.IsFramingError(u.Err) {
					stats.Update(nil, u.Err, nil)
				}
				if !synchronized {
					skipped++
					continue
				}
				printDecodeError(u)
			case link.UpdateMessage:
				msg := u.Message
				stats.Update(&msg, nil, u.Anomaly)
				if !synchronized {
					synchronized = true
					if skipped > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d malformed frames\n\n", skipped)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}
				if len(u.Anomaly) > 0 {
					printValidationErrors(u.Message, u.Time, u.Anomaly)
				} else if showAll {
					fmt.Print(wifly.FormatMessage(u.Message, u.Time))
				}
			}

		case <-statsTicker.C:
			stats.CalculateRates()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printDecodeError prints a framing or device error in highlighted format
func printDecodeError(u link.Update) {
	timestamp := u.Time.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, u.Err)
	if wifly.IsFramingError(u.Err) {
		fmt.Printf("  >>> FRAME DISCARDED <<<\n\n")
	} else {
		fmt.Println()
	}
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(m wifly.Message, ts time.Time, errors []wifly.ValidationError) {
	timestamp := ts.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s/%s (0x%02X/0x%02X)\n",
		timestamp, wifly.FormatTag(m.Tag), wifly.FormatCommand(m.Command), uint8(m.Tag), uint8(m.Command))
	fmt.Printf("  Data: %s\n", wifly.FormatHex(m.Data[:]))

	for i, err := range errors {
		switch err.Type {
		case wifly.AnomalyUnknownTag, wifly.AnomalyUnknownCommand, wifly.AnomalyTagMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case wifly.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			for key, value := range err.Details {
				fmt.Printf("    %s=%v\n", key, value)
			}
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> MESSAGE FLAGGED <<<\n\n")
}
