package store

import "errors"

// ErrInstanceNotFound is returned by [Store.Load] when no record exists for
// the requested instance id.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrCorruptState is returned when a record file exists but cannot be decoded
// into a coherent instance. The file is left in place for inspection.
var ErrCorruptState = errors.New("corrupt instance record")

// ErrNoActiveInstance is returned by [Store.FindActive] when no in-flight
// instance exists. Remediation: run start first, or pass an explicit id.
var ErrNoActiveInstance = errors.New("no active instance")

// ErrAmbiguousInstance is returned by [Store.FindActive] when more than one
// in-flight instance matches. The store never guesses; the caller must name
// an instance id.
var ErrAmbiguousInstance = errors.New("multiple active instances")
