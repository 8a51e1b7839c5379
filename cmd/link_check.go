// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw link stability",
	Long: `Hold the link open without sending anything, logging every chunk of
bytes received and how many of them framed into valid messages.

Useful for telling a flaky WebSocket bridge or serial adapter apart from
a rover that is sending garbage.

Exit codes:
  0 - Link stayed up for the whole duration
  1 - Link dropped
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration int

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

type linkCheckResult struct {
	chunks   int
	bytes    int
	frames   int
	framing  int
	duration time.Duration
}

func (r linkCheckResult) print(verdict string) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", r.duration.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", r.chunks)
	fmt.Printf("Bytes received: %d\n", r.bytes)
	fmt.Printf("Frames decoded: %d\n", r.frames)
	fmt.Printf("Framing errors: %d\n", r.framing)
	fmt.Printf("Result: %s\n", verdict)
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	decoder := wifly.NewDecoder(decoderOptions()...)
	var result linkCheckResult
	start := time.Now()
	endTime := start.Add(time.Duration(linkCheckDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			result.chunks++
			result.bytes += len(data)
			for _, b := range data {
				msg, err := decoder.DecodeByte(b)
				if err != nil {
					result.framing++
				}
				if msg != nil {
					result.frames++
				}
			}
			fmt.Printf("[%s] Received %d bytes: %s\n",
				time.Now().Format("15:04:05.000"), len(data), wifly.FormatHex(data))

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			result.duration = time.Since(start)
			result.print("FAILED (link dropped)")
			os.Exit(1)

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	result.duration = time.Since(start)
	result.print("PASSED (link stable)")
	return nil
}
