package game

import (
	"errors"
	"fmt"
)

// ErrProtocol marks misuse of the recorder or engine by game code, such as
// logging before a turn is open or prompting a player whose history does not
// end with a prompt. These are programming errors and are never retried.
var ErrProtocol = errors.New("game protocol violation")

// ProtocolError describes a single protocol violation.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrProtocol, e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// violation panics with a *ProtocolError.
func violation(op, format string, args ...any) {
	panic(&ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// recoverProtocol converts a *ProtocolError panic into *errp. Any other panic
// is re-raised.
func recoverProtocol(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if pe, ok := r.(*ProtocolError); ok {
		*errp = pe
		return
	}
	panic(r)
}
