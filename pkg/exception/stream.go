package exception

import "errors"

var (
	ErrStreamClosed      = errors.New("stream: closed by venue")
	ErrStreamFatal       = errors.New("stream: fatal error")
	ErrStreamUnsupported = errors.New("stream: unsupported channel")
)
