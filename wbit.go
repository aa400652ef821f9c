// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

// WState is the fragmentation-reassembly state a Depayloader tracks across
// packets carrying the spec-mode header's W field, per spec.md §4.6/§9.
type WState int

const (
	WStateIdle WState = iota
	WStateInFragment
)

// WStateMachine enforces the legal sequence of W values across packets
// (spec.md §4.6): the regex `( 0* | 0* 1 2* 3 )+` over {0,1,2,3}.
type WStateMachine struct {
	state  WState
	lastW  uint8
	inited bool
}

// NewWStateMachine returns a machine starting in WStateIdle.
func NewWStateMachine() *WStateMachine {
	return &WStateMachine{state: WStateIdle}
}

// State returns the current state.
func (m *WStateMachine) State() WState { return m.state }

// Reset returns the machine to WStateIdle, discarding any memory of the
// last W value. Called after a rejection or an explicit discontinuity.
func (m *WStateMachine) Reset() {
	m.state = WStateIdle
	m.lastW = 0
	m.inited = false
}

// Advance validates w against the current state and transition table and,
// if accepted, updates the state. On rejection the machine's state is left
// unchanged — per spec.md §4.6 ("rejection discards the accumulated
// fragment bytes and resets to idle"), callers are expected to call Reset
// themselves after observing the returned error so that the discontinuity
// event and the SM reset happen together.
func (m *WStateMachine) Advance(w uint8) error {
	if w > 3 {
		return &Error{Kind: KindInvalidWValue}
	}

	switch m.state {
	case WStateIdle:
		switch {
		case w == 0 || w == 1:
			// Idle only ever carries lastW ∈ {uninitialized, 0, 3}; all
			// three accept 0 and 1 unconditionally.
			m.lastW = w
			m.inited = true
			if w == 1 {
				m.state = WStateInFragment
			}
			return nil
		case w == 2 || w == 3:
			if m.inited && m.lastW == 3 {
				return &Error{Kind: KindInvalidWTransition}
			}
			return &Error{Kind: KindFragmentNotStarted}
		}

	case WStateInFragment:
		switch w {
		case 2:
			m.lastW = w
			return nil
		case 3:
			m.lastW = w
			m.inited = true
			m.state = WStateIdle
			return nil
		case 0, 1:
			return &Error{Kind: KindIncompleteFragment}
		}
	}

	return &Error{Kind: KindInvalidWValue}
}
