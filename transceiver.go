package evilcan

// Transceiver is raw access to the three bus lines of a board. Levels are
// electrical: true on the receive line is recessive, SetTx(true) releases the
// transmit line and SetForce(true) pulls the bus dominant.
//
// Implementations are register-level and must not block or fail.
type Transceiver interface {
	SetTx(state bool)
	GetRx() bool
	SetForce(state bool)
}

// SOFWaiter is implemented by transceivers with a faster start-of-frame
// detector than polling GetRx (an edge-triggered input, a controller flag).
type SOFWaiter interface {
	WaitForSOF()
}

// StateApplier is implemented by transceivers that can drive both output
// lines with a single register write.
type StateApplier interface {
	Apply(state TransceiverState)
}

// TransceiverState holds the output line values to drive at the next bit
// boundary.
type TransceiverState struct {
	Force bool
	Tx    bool
}

// IdleState releases both output lines.
var IdleState = TransceiverState{Force: false, Tx: true}

// WaitForSOF blocks until the bus leaves its recessive idle level.
func WaitForSOF(tr Transceiver) {
	if w, ok := tr.(SOFWaiter); ok {
		w.WaitForSOF()
		return
	}
	for tr.GetRx() {
	}
}

// Apply drives both output lines from state.
func Apply(tr Transceiver, state TransceiverState) {
	applyFunc(tr)(state)
}

// applyFunc resolves how tr takes a whole state: in one write when it is a
// StateApplier, else force line first, then transmit line.
func applyFunc(tr Transceiver) func(TransceiverState) {
	if a, ok := tr.(StateApplier); ok {
		return a.Apply
	}
	return func(s TransceiverState) {
		tr.SetForce(s.Force)
		tr.SetTx(s.Tx)
	}
}
