package server

import "time"

const (
	// RateLimitWindow is the sliding window for inbound control messages.
	RateLimitWindow = 10 * time.Second
	// RateLimitMessages is the max control messages per window per client.
	RateLimitMessages = 20

	// writeTimeout bounds a single websocket write to a slow client.
	writeTimeout = 5 * time.Second

	// sendBuffer is the per-connection outbound queue depth. A client
	// that falls this far behind is disconnected rather than served a
	// gappy diff stream.
	sendBuffer = 64
)
