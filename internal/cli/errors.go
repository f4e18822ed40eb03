package cli

import (
	"github.com/ZanzyTHEbar/errbuilder-go"
)

func invalidArgument(msg string, cause error) error {
	err := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
	if cause != nil {
		return err.WithCause(cause)
	}
	return err
}

// loggedErrors fails a command whose build logger recorded errors even though
// the operation itself returned cleanly.
func loggedErrors(hasErrors bool) error {
	if !hasErrors {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("errors were reported, see the log above")
}
