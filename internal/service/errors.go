package service

import (
	"errors"
)

// RuleError is returned when a request conflicts with the room's state or
// with the caller's relationship to the room. Its message is safe to show
// to clients.
type RuleError struct {
	msg string
}

func (e *RuleError) Error() string { return e.msg }

var (
	ErrRoomNotFound = errors.New("room not found")

	ErrRoomEnded       = &RuleError{msg: "room ended"}
	ErrNotOwner        = &RuleError{msg: "not the owner"}
	ErrAlreadyEnded    = &RuleError{msg: "already ended"}
	ErrRoomUnavailable = &RuleError{msg: "room unavailable"}
	ErrInvalidRole     = &RuleError{msg: "invalid role"}
	ErrInvalidTitle    = &RuleError{msg: "title is required"}

	// ErrCreateRoomFailed hides the storage cause from clients.
	ErrCreateRoomFailed = errors.New("could not create room, please try again")
)

// IsRuleError reports whether err is a business rule violation.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
