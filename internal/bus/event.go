package bus

import "time"

// Event is a named payload published to observers. Names use dotted or
// dashed prefixes ("wa.message", "pairing-code") so subscribers can filter
// by namespace.
type Event struct {
	Name    string
	At      time.Time
	Payload any
}
