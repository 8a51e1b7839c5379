// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyUnknownTag AnomalyType = iota
	AnomalyUnknownCommand
	AnomalyTagMismatch
	AnomalyInvalidValue
)

// ValidationError represents a message validation failure.
// Messages that fail validation are still delivered; consumers ignore what
// they do not understand.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks tag/command recognition and per-command value ranges.
// Returns a slice of validation errors (empty if the message is valid)
func ValidateMessage(m Message) []ValidationError {
	errors := []ValidationError{}

	if !knownTag(m.Tag) {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownTag,
			Message: fmt.Sprintf("Unknown tag 0x%02X", uint8(m.Tag)),
			Details: map[string]interface{}{"tag": uint8(m.Tag)},
		})
	}

	if !knownCommand(m.Command) {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X", uint8(m.Command)),
			Details: map[string]interface{}{"command": uint8(m.Command)},
		})
		return errors
	}

	if knownTag(m.Tag) && commandTag(m.Command) != m.Tag {
		errors = append(errors, ValidationError{
			Type: AnomalyTagMismatch,
			Message: fmt.Sprintf("Command %s sent under tag %s (expected %s)",
				FormatCommand(m.Command), FormatTag(m.Tag), FormatTag(commandTag(m.Command))),
			Details: map[string]interface{}{"tag": uint8(m.Tag), "command": uint8(m.Command)},
		})
		return errors
	}

	if m.Is(TagMotor, CmdMotorPwm) {
		errors = append(errors, validatePwm(m)...)
	}

	return errors
}

// validatePwm checks that wheel direction bytes are 0 (reverse) or 1 (forward)
func validatePwm(m Message) []ValidationError {
	errors := []ValidationError{}
	for i, idx := range []int{0, 2} {
		if m.Data[idx] > 1 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid direction byte 0x%02X for wheel %d", m.Data[idx], i),
				Details: map[string]interface{}{"wheel": i, "value": m.Data[idx]},
			})
		}
	}
	return errors
}
