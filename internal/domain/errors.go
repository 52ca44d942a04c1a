package domain

import "errors"

var (
	ErrRoomFull   = errors.New("room is full")
	ErrRoomLocked = errors.New("room is locked")
	ErrNotInCall  = errors.New("participant is not in the call")

	ErrCallIDEmpty        = errors.New("call id empty")
	ErrCallIDTooLong      = errors.New("call id too long")
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)
