// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package recording

import (
	"iter"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/rover"
)

// ReplayStep is the estimator's response to one recorded inbound message
type ReplayStep struct {
	Entry       Entry
	Observation rover.Observation
	Err         error
}

// Replay feeds recorded traffic through est in recorded order. Message
// entries are applied as if just received; command entries update the
// wheel signs. Recorded pose and wall entries are ignored so the result is
// recomputed from scratch. visit is called for every applied message and
// may stop the replay by returning false.
func Replay(entries iter.Seq2[Entry, error], est *rover.Estimator, visit func(ReplayStep) bool) error {
	for e, err := range entries {
		if err != nil {
			return err
		}

		switch e.Kind {
		case link.UpdateCommand:
			if control, ok := e.ControlState(); ok {
				est.SetSigns(rover.NewCommand(control).Signs)
			}
		case link.UpdateMessage:
			obs, applyErr := est.Apply(e.WiflyMessage())
			if !visit(ReplayStep{Entry: e, Observation: obs, Err: applyErr}) {
				return nil
			}
		}
	}
	return nil
}
