// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Roverstation - WiFly Rover Operator Station

package main

import (
	"os"

	"github.com/Thermoquad/roverstation/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
