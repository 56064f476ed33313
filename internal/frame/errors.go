package frame

import "errors"

// ErrCaptureFailed indicates the platform backend produced no usable frame.
// The pipeline counts these and keeps polling; a run of failures is logged
// once, not per tick.
var ErrCaptureFailed = errors.New("screen capture failed")
