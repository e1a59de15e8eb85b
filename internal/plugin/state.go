// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package plugin

// State is a plugin's position in the lifecycle. Transitions:
//
//	Unloaded -> Loaded -> Active <-> Inactive -> Unloaded
//
// Loaded may also go straight back to Unloaded. Everything else is a
// contract violation reported as ACTIVATION_STATE.
type State uint8

const (
	StateUnloaded State = iota
	StateLoaded
	StateActive
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// canActivate reports whether Activate is legal from s.
func (s State) canActivate() bool {
	return s == StateLoaded || s == StateInactive
}

// canDeactivate reports whether Deactivate is legal from s.
func (s State) canDeactivate() bool {
	return s == StateActive
}

// canUnload reports whether Unload is legal from s. Active plugins
// must deactivate first.
func (s State) canUnload() bool {
	return s == StateLoaded || s == StateInactive
}
