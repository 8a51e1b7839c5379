// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var (
	packetTestTimeout int
)

// errGotFrame stops the receiver once a frame has arrived
var errGotFrame = errors.New("frame received")

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid WiFly frame",
	Long: `Wait for a valid WiFly frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any
complete frame from the rover. Noise and malformed frames are counted and
skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	timeout := time.Duration(packetTestTimeout) * time.Second
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Roverstation - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid WiFly frame...\n\n")

	var got link.Inbound
	framingErrors := 0
	receiver := link.NewReceiver(conn, logger, decoderOptions()...)

	done := make(chan error, 1)
	go func() {
		done <- receiver.Run(ctx, func(_ context.Context, in link.Inbound) error {
			if in.Err != nil {
				framingErrors++
				return nil
			}
			got = in
			return errGotFrame
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, errGotFrame) {
			if err == nil {
				err = errLinkClosed
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
		if framingErrors > 0 {
			fmt.Printf("(skipped %d malformed frames before sync)\n", framingErrors)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Tag: %s (0x%02X)\n", wifly.FormatTag(got.Message.Tag), uint8(got.Message.Tag))
		fmt.Printf("  Command: %s (0x%02X)\n", wifly.FormatCommand(got.Message.Command), uint8(got.Message.Command))
		fmt.Printf("  Data: %s\n", wifly.FormatHex(got.Message.Data[:]))
		fmt.Printf("  Frame: %s\n", wifly.FormatHex(got.Raw))
		os.Exit(0)

	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
