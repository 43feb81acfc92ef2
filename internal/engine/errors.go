package engine

import "fmt"

// InvalidError marks a request the caller can fix.
type InvalidError struct {
	Msg string
}

func (e *InvalidError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &InvalidError{Msg: fmt.Sprintf(format, args...)}
}

// EnvironmentMismatchError is returned when the specs of one step resolve to
// more than one deployment environment.
type EnvironmentMismatchError struct {
	StageName string
	Want      string
	Got       string
}

func (e *EnvironmentMismatchError) Error() string {
	return fmt.Sprintf("environment should be %s for all specs in a step, but got %s", e.Want, e.Got)
}
