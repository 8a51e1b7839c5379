// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wifly

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidMessages   uint64
	FramingErrors   uint64
	UnknownMessages uint64
	InvalidValues   uint64
	SensorReadings  uint64
	EncoderReadings uint64
	CommandsSent    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a decoded message or decode error
func (s *Statistics) Update(m *Message, decodeErr error, validationErrors []ValidationError) {
	// Device errors are not frames
	if decodeErr != nil {
		if errors.Is(decodeErr, ErrFraming) {
			s.TotalFrames++
			s.FramingErrors++
			s.LastUpdateTime = time.Now()
		}
		return
	}
	if m == nil {
		return
	}
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	unknown := false
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownTag, AnomalyUnknownCommand, AnomalyTagMismatch:
			unknown = true
		case AnomalyInvalidValue:
			s.InvalidValues++
		}
	}
	if unknown {
		s.UnknownMessages++
		return
	}
	if len(validationErrors) == 0 {
		s.ValidMessages++
	}

	switch {
	case m.Is(TagSensor, CmdSensorRawRead):
		s.SensorReadings++
	case m.Is(TagMotor, CmdMotorEncoderRead):
		s.EncoderReadings++
	}
}

// RecordSent counts an outbound command
func (s *Statistics) RecordSent() {
	s.CommandsSent++
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		errorCount := s.FramingErrors + s.UnknownMessages + s.InvalidValues
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, framingPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidMessages) * 100.0 / float64(s.TotalFrames)
		framingPercent = float64(s.FramingErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Messages:  %8d (%.1f%%)\n", s.ValidMessages, validPercent)

	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, framingPercent)
	}
	if s.UnknownMessages > 0 {
		result += fmt.Sprintf("Unknown Msgs:    %8d\n", s.UnknownMessages)
	}
	if s.InvalidValues > 0 {
		result += fmt.Sprintf("Invalid Values:  %8d\n", s.InvalidValues)
	}

	result += fmt.Sprintf("Sensor Reads:    %8d\n", s.SensorReadings)
	result += fmt.Sprintf("Encoder Reads:   %8d\n", s.EncoderReadings)
	if s.CommandsSent > 0 {
		result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
