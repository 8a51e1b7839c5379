// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package recording stores station sessions as a stream of CBOR entries
// so a drive can be inspected or replayed through a fresh estimator.
//
// A recording is a Header followed by any number of Entry values, each an
// independent CBOR data item with integer keys.
package recording

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/roverstation/pkg/link"
	"github.com/Thermoquad/roverstation/pkg/maneuver"
	"github.com/Thermoquad/roverstation/pkg/rover"
	"github.com/Thermoquad/roverstation/pkg/wifly"
)

// FormatVersion is written in every header
const FormatVersion = 1

// ErrBadHeader is returned when a stream does not start with a recording header
var ErrBadHeader = errors.New("not a roverstation recording")

// Header opens a recording
type Header struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	Started int64  `cbor:"3,keyasint"` // unix nanoseconds
	Source  string `cbor:"4,keyasint,omitempty"`
}

const magic = "roverstation"

// Entry is one recorded station update
type Entry struct {
	Kind     link.UpdateKind `cbor:"1,keyasint"`
	Time     int64           `cbor:"2,keyasint"` // unix nanoseconds
	Message  []byte          `cbor:"3,keyasint,omitempty"`
	Raw      []byte          `cbor:"4,keyasint,omitempty"`
	Pose     *rover.Pose     `cbor:"5,keyasint,omitempty"`
	Wall     *[4]float64     `cbor:"6,keyasint,omitempty"` // front x, front y, rear x, rear y
	Control  *[2]int         `cbor:"7,keyasint,omitempty"` // direction, gear
	Maneuver *maneuver.Phase `cbor:"8,keyasint,omitempty"`
	Error    string          `cbor:"9,keyasint,omitempty"`
}

// Timestamp returns the entry time
func (e Entry) Timestamp() time.Time {
	return time.Unix(0, e.Time)
}

// WiflyMessage returns the decoded message of an UpdateMessage entry
func (e Entry) WiflyMessage() wifly.Message {
	return wifly.MessageFromBytes(e.Message)
}

// ControlState returns the control of an UpdateCommand entry
func (e Entry) ControlState() (rover.ControlState, bool) {
	if e.Control == nil {
		return rover.ControlState{}, false
	}
	return rover.ControlState{Direction: rover.Direction(e.Control[0]), Gear: e.Control[1]}, true
}

// WallObservation returns the wall of an UpdateWall entry
func (e Entry) WallObservation() (rover.WallObservation, bool) {
	if e.Wall == nil {
		return rover.WallObservation{}, false
	}
	return rover.WallObservation{
		Front: rover.Point{X: e.Wall[0], Y: e.Wall[1]},
		Rear:  rover.Point{X: e.Wall[2], Y: e.Wall[3]},
	}, true
}

// EntryFromUpdate converts a station update for storage
func EntryFromUpdate(u link.Update) Entry {
	e := Entry{Kind: u.Kind, Time: u.Time.UnixNano()}

	switch u.Kind {
	case link.UpdateMessage:
		b := u.Message.Bytes()
		e.Message = b[:]
		e.Raw = u.Raw
	case link.UpdatePose:
		pose := u.Pose
		e.Pose = &pose
	case link.UpdateWall:
		e.Wall = &[4]float64{u.Wall.Front.X, u.Wall.Front.Y, u.Wall.Rear.X, u.Wall.Rear.Y}
	case link.UpdateCommand:
		e.Control = &[2]int{int(u.Command.Control.Direction), u.Command.Control.Gear}
	case link.UpdateManeuver:
		phase := u.Maneuver
		e.Maneuver = &phase
	case link.UpdateError:
		if u.Err != nil {
			e.Error = u.Err.Error()
		}
	}
	return e
}

// Writer appends entries to a recording. It implements link.Recorder and
// is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

// NewWriter writes a header to w and returns a writer for entries
func NewWriter(w io.Writer, source string, started time.Time) (*Writer, error) {
	enc := cbor.NewEncoder(w)
	h := Header{
		Magic:   magic,
		Version: FormatVersion,
		Started: started.UnixNano(),
		Source:  source,
	}
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("write recording header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Record appends a station update
func (w *Writer) Record(u link.Update) error {
	return w.Write(EntryFromUpdate(u))
}

// Write appends an entry
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("write recording entry: %w", err)
	}
	return nil
}

// Reader reads a recording written by Writer
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the recording header
func (r *Reader) Header() Header {
	return r.header
}

// Entries returns the remaining entries. The sequence ends at end of
// stream, or after yielding a decode error.
func (r *Reader) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for {
			var e Entry
			err := r.dec.Decode(&e)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("read recording entry: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}
