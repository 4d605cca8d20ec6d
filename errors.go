package benor

import "errors"

var (
	// ErrInactive is returned when a killed or faulty node is asked to take part in the protocol.
	ErrInactive = errors.New("node is inactive")

	// ErrFaulty is returned by the status query of a faulty node.
	ErrFaulty = errors.New("faulty")

	// ErrMalformedMessage is returned when a message is missing a required field.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidValue is returned when a value is not one of 0, 1 or "?".
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidPhase is returned when a message type is not a known phase.
	ErrInvalidPhase = errors.New("invalid phase")
)
