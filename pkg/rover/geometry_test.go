// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rover

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorDistance(t *testing.T) {
	assert.InDelta(t, 3678953.0/40002.0-4, SensorDistance(100), tolerance)
	assert.InDelta(t, 87.969, SensorDistance(100), 1e-3)

	// Raw 0 gives 3678953/2 - 4, beyond the saturation point
	assert.Equal(t, MaxSensorDistance, SensorDistance(0))
	// Denominator at or below zero saturates instead of going negative or infinite
	assert.Equal(t, MaxSensorDistance, SensorDistance(-0.005))
	assert.Equal(t, MaxSensorDistance, SensorDistance(-3))
	assert.Equal(t, MaxSensorDistance, SensorDistance(math.NaN()))

	// Larger raw values mean shorter distance
	assert.Less(t, SensorDistance(200), SensorDistance(100))
}

func TestEncoderDistance(t *testing.T) {
	assert.InDelta(t, 0.13002, EncoderDistance(1), 1e-5)
	assert.InDelta(t, 298*12*EncoderTickToMM, EncoderDistance(298*12), tolerance)
	assert.InDelta(t, 37*math.Pi*4, EncoderDistance(298*12), 1e-9)
	assert.Equal(t, 0.0, EncoderDistance(0))
}
