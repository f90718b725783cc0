package exception

import "errors"

var (
	ErrConnNotConnected     = errors.New("connection: not connected")
	ErrConnAlreadyConnected = errors.New("connection: already connected")
	ErrConnClosing          = errors.New("connection: closing")
	ErrConnAuthFailed       = errors.New("connection: authentication failed")
	ErrRequestTimeout       = errors.New("connection: request timed out")
)
