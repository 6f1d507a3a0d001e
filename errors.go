package cistron

import "errors"

// Sentinel error kinds, matched with errors.Is at call sites.
var (
	// ErrUnknownObject means an operation targeted a never-created or
	// already-destroyed object id.
	ErrUnknownObject = errors.New("cistron: unknown object")

	// ErrInvalidComponent means an operation targeted a component that
	// is already destroyed, unknown, or otherwise unusable.
	ErrInvalidComponent = errors.New("cistron: invalid component")

	// ErrDuplicateName means a name-directory registration collided
	// with an already-registered name.
	ErrDuplicateName = errors.New("cistron: duplicate name")

	// ErrReentrantSelfDispatch means a callback attempted to trigger
	// dispatch on the same request id whose dispatch it is running
	// inside.
	ErrReentrantSelfDispatch = errors.New("cistron: reentrant self dispatch")

	// ErrAddFailure means the owning object rejected the component.
	ErrAddFailure = errors.New("cistron: add component failed")
)
