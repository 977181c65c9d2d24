package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidItemID = errors.New("invalid item id")
	ErrTransport     = errors.New("transport failure")
	ErrStore         = errors.New("store failure")
	ErrLockHeld      = errors.New("lock already held")
)
