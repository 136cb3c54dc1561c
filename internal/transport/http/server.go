package http

import "time"

const (
	defaultWriteTimeout = 30 * time.Second
	writeTimeoutSlack   = 5 * time.Second
)

// WriteTimeout returns the server write timeout for handlers that may block
// on an outbound call for up to longest, such as a retried OTP mail send.
func WriteTimeout(longest time.Duration) time.Duration {
	if t := longest + writeTimeoutSlack; t > defaultWriteTimeout {
		return t
	}
	return defaultWriteTimeout
}
