// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

var sendCmd = &cobra.Command{
	Use:   "send DIRECTION [GEAR]",
	Short: "Send a single motor command",
	Long: `Send one MOTOR/PWM command built from a direction and gear.

DIRECTION is one of forward, backward, left, right or stop (or f, b, l, r, s).
GEAR is 0 to 5 and defaults to 0; gear 0 and stop both send the neutral
payload. Values above 5 are clamped.

Example:
  roverstation --port /dev/ttyUSB0 send forward 2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

// parseDirection accepts a direction name or its first letter
func parseDirection(s string) (rover.Direction, error) {
	switch strings.ToLower(s) {
	case "forward", "f":
		return rover.DirectionForward, nil
	case "backward", "back", "b":
		return rover.DirectionBackward, nil
	case "left", "l":
		return rover.DirectionLeft, nil
	case "right", "r":
		return rover.DirectionRight, nil
	case "stop", "s":
		return rover.DirectionStop, nil
	}
	return rover.DirectionStop, fmt.Errorf("unknown direction %q", s)
}

func parseControl(args []string) (rover.ControlState, error) {
	dir, err := parseDirection(args[0])
	if err != nil {
		return rover.ControlState{}, err
	}
	gear := 0
	if len(args) > 1 {
		gear, err = strconv.Atoi(args[1])
		if err != nil || gear < 0 {
			return rover.ControlState{}, fmt.Errorf("invalid gear %q", args[1])
		}
	}
	return rover.ControlState{Direction: dir, Gear: rover.ClampGear(gear)}, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	control, err := parseControl(args)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	command := rover.NewCommand(control)
	frame := wifly.Encode(command.Message())
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: write: %w", wifly.ErrDevice, err)
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sent %s: %s\n", command.Control, wifly.FormatHex(frame))
	return nil
}
