// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package maneuver runs the scripted self-test drive: five timed phases,
// each issuing one motor command, ending with the rover stopped.
package maneuver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Thermoquad/roverstation/pkg/rover"
)

// ErrAlreadyRunning is returned by Start while a run is in progress
var ErrAlreadyRunning = errors.New("maneuver already running")

// Phase is the sequencer state. Phase1..Phase5 are armed phases waiting
// for their timer; each fires one command and advances.
type Phase int

// Phase values
const (
	PhaseIdle Phase = iota
	Phase1
	Phase2
	Phase3
	Phase4
	Phase5
	PhaseDone
)

func (p Phase) String() string {
	switch {
	case p == PhaseIdle:
		return "IDLE"
	case p == PhaseDone:
		return "DONE"
	case p.active():
		return fmt.Sprintf("P%d", int(p))
	default:
		return "UNKNOWN"
	}
}

func (p Phase) active() bool {
	return p >= Phase1 && p <= Phase5
}

// Stage is one scripted phase: wait Delay, then issue Control
type Stage struct {
	Delay   time.Duration
	Control rover.ControlState
}

// Script is the self-test run, indexed from Phase1
var Script = [5]Stage{
	{Delay: 5000 * time.Millisecond, Control: rover.ControlState{Gear: 2, Direction: rover.DirectionForward}},
	{Delay: 16000 * time.Millisecond, Control: rover.ControlState{Gear: 2, Direction: rover.DirectionBackward}},
	{Delay: 6100 * time.Millisecond, Control: rover.ControlState{Gear: 2, Direction: rover.DirectionLeft}},
	{Delay: 3500 * time.Millisecond, Control: rover.ControlState{Gear: 2, Direction: rover.DirectionBackward}},
	{Delay: 8300 * time.Millisecond, Control: rover.ControlState{Gear: 0, Direction: rover.DirectionStop}},
}

// Step is a command emitted by the sequencer. Run identifies the run that
// produced it so a consumer can drop steps that raced a Stop.
type Step struct {
	Run     uint64
	Phase   Phase
	Command rover.Command
	Final   bool
}

// Sequencer drives Script on a clock. Emit is called from the timer
// goroutine, outside the sequencer lock, once per phase.
type Sequencer struct {
	mu    sync.Mutex
	clock clock.Clock
	emit  func(Step)
	phase Phase
	run   uint64
	timer *clock.Timer
}

// New creates an idle sequencer. A nil clock uses the wall clock.
func New(clk clock.Clock, emit func(Step)) *Sequencer {
	if clk == nil {
		clk = clock.New()
	}
	return &Sequencer{
		clock: clk,
		emit:  emit,
		phase: PhaseIdle,
	}
}

// Start arms Phase1. Starting while a run is in progress returns
// ErrAlreadyRunning; starting after completion or Stop begins a fresh run.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.active() {
		return fmt.Errorf("%w: phase %s", ErrAlreadyRunning, s.phase)
	}

	s.run++
	s.phase = Phase1
	s.arm()
	return nil
}

// Stop cancels the pending phase. Returns false if nothing was running.
func (s *Sequencer) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.active() {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.run++
	s.phase = PhaseIdle
	return true
}

// Running reports whether a phase timer is armed
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.active()
}

// Phase returns the current phase
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current reports whether step belongs to the latest run
func (s *Sequencer) Current(step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return step.Run == s.run
}

// arm schedules the current phase. Caller holds mu.
func (s *Sequencer) arm() {
	run := s.run
	stage := Script[s.phase-Phase1]
	s.timer = s.clock.AfterFunc(stage.Delay, func() { s.fire(run) })
}

func (s *Sequencer) fire(run uint64) {
	s.mu.Lock()
	if run != s.run || !s.phase.active() {
		s.mu.Unlock()
		return
	}

	stage := Script[s.phase-Phase1]
	step := Step{
		Run:     run,
		Phase:   s.phase,
		Command: rover.NewCommand(stage.Control),
	}

	// Re-arm before emitting so the next deadline counts from this one
	s.phase++
	if s.phase.active() {
		s.arm()
	} else {
		s.timer = nil
		step.Final = true
	}
	s.mu.Unlock()

	if s.emit != nil {
		s.emit(step)
	}
}
