// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votesdb

// State is the high-level lifecycle state of the votes database service.
type State uint8

const (
	// Idle means the service has been created but Run was not called yet.
	Idle State = iota

	// Running means the service loop is consuming messages.
	Running

	// Stopped means the service loop has exited; no further database access
	// happens.
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
