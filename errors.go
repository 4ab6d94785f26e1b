package sfs

import "errors"

var (
	ErrNotConnected     = errors.New("sfs: not connected")
	ErrAlreadyConnected = errors.New("sfs: already connected or connecting")
	ErrRoomListEmpty    = errors.New("sfs: room list is empty, request it with GetRoomList")
	ErrNoActiveRoom     = errors.New("sfs: no active room, join one first")
	ErrUnknownRoom      = errors.New("sfs: unknown room")
	ErrChangingRoom     = errors.New("sfs: a room change is already in progress")
	ErrInvalidParams    = errors.New("sfs: invalid parameters")
	ErrUnknownBuddy     = errors.New("sfs: unknown buddy")
)
