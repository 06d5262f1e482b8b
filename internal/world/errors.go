package world

import "errors"

var (
	ErrUnknownLocation    = errors.New("unknown location")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownItem        = errors.New("unknown item")
	ErrUnknownEffect      = errors.New("unknown effect")
	ErrParticipantExists  = errors.New("participant already exists")
	ErrDuplicateItem      = errors.New("duplicate item instance")
	ErrLocationOccupied   = errors.New("location still occupied")
	ErrMalformedMutation  = errors.New("malformed mutation")
)
