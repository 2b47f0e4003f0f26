package session

import "slices"

// State is the session lifecycle state.
type State string

const (
	StateIdle         State = "IDLE"
	StatePairing      State = "PAIRING"
	StateConnected    State = "CONNECTED"
	StateDisconnected State = "DISCONNECTED"
)

// validTransitions defines the allowed lifecycle moves. Pairing may re-enter
// itself on a fresh dial attempt.
var validTransitions = map[State][]State{
	StateIdle:         {StatePairing},
	StatePairing:      {StatePairing, StateConnected, StateDisconnected},
	StateConnected:    {StatePairing, StateDisconnected},
	StateDisconnected: {StatePairing},
}

func transitionAllowed(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Status is a point-in-time snapshot of the session, including any pending
// pairing artifact. QRDataURL and PairingCode are mutually exclusive.
type Status struct {
	State       State  `json:"state"`
	Connected   bool   `json:"connected"`
	QRDataURL   string `json:"qr,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}
