package engine

import "errors"

// ErrClosed is returned by Submit once the loop has shut down.
var ErrClosed = errors.New("engine: loop is closed")
