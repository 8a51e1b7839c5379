// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/roverstation/pkg/link"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Link and logging flags
	configPath     string
	noLengthPrefix bool
	logLevel       string
	logFile        string
)

var rootCmd = &cobra.Command{
	Use:   "roverstation",
	Short: "WiFly Rover Operator Station",
	Long: `Roverstation - drive and monitor a two-wheel WiFly rover.

Decodes sensor and encoder frames from the rover, dead-reckons its pose
along the followed wall, and sends motor commands from the keyboard or from
the scripted self-test maneuver.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 57600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the ROVER_PASSWORD
environment variable, or prompted interactively if not set.

Settings may also come from a YAML file given with --config; flags given on
the command line take precedence.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", link.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().BoolVar(&noLengthPrefix, "no-length-prefix", false, "Rover frames have no LEN byte (START payload END)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
