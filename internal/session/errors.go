package session

import "errors"

var (
	ErrSessionFull        = errors.New("session is full")
	ErrNameTaken          = errors.New("name already taken")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrStaleTurn          = errors.New("submission for a closed turn")
	ErrAlreadyActive      = errors.New("session already active")
	ErrNotActive          = errors.New("session not active")
	ErrUnknownCommand     = errors.New("unknown command")
)
