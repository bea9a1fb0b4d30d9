package remote

import (
	"errors"
	"fmt"
)

// TransportError means the request never reached the collaborator (dial
// failure, timeout, cancelled context).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: collaborator unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError means the collaborator answered but reported failure: a
// non-2xx status, an error body, or a body that could not be decoded.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: collaborator returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unavailable reports a 503, which is how the collaborator signals its
// simulated failure mode
func (e *RemoteError) Unavailable() bool {
	return e.StatusCode == 503
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRemote reports whether err is a RemoteError
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
