package graph

import "errors"

var (
	// ErrChannelOutOfRange is returned when a channel index is outside the
	// declared bus shape.
	ErrChannelOutOfRange = errors.New("graph: channel out of range")
	// ErrChannelAlreadyConnected is returned when a destination channel that
	// does not sum already has a source, or the same cable exists twice.
	ErrChannelAlreadyConnected = errors.New("graph: channel already connected")
	// ErrCycleRejected is returned when a cable would close a cycle through a
	// module that does not tolerate feedback.
	ErrCycleRejected = errors.New("graph: cycle rejected")
	// ErrUnknownModuleType is returned for type names missing from the registry.
	ErrUnknownModuleType = errors.New("graph: unknown module type")
	// ErrModuleNotFound is returned for logical IDs without a live module.
	ErrModuleNotFound = errors.New("graph: module not found")
	// ErrConnectionNotFound is returned when disconnecting a missing cable.
	ErrConnectionNotFound = errors.New("graph: connection not found")
	// ErrUnknownParameter is returned for parameter names a module lacks.
	ErrUnknownParameter = errors.New("graph: unknown parameter")
	// ErrUnknownCell is returned for telemetry cells a module lacks.
	ErrUnknownCell = errors.New("graph: unknown telemetry cell")
	// ErrPermanentModule is returned when removing a reserved module.
	ErrPermanentModule = errors.New("graph: module is permanent")
	// ErrPrepareFailed is returned when a module cannot be built or prepared.
	ErrPrepareFailed = errors.New("graph: module setup failed")
	// ErrInvalidTypeName is returned when registering a malformed type name
	// or a nil factory.
	ErrInvalidTypeName = errors.New("graph: invalid module type")
	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("graph: module type already registered")
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("graph: engine closed")
)
