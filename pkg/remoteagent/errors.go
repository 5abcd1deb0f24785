package remoteagent

import (
	"errors"
	"fmt"
)

// ErrNoActiveStream is returned by Cancel when nothing is streaming.
var ErrNoActiveStream = errors.New("no active stream")

// TransportError reports a failure talking to the remote agent, as opposed
// to a task the agent itself reported as failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote agent %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
