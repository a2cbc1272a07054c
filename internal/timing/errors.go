package timing

import "fmt"

// InvalidInputError reports counts that cannot be turned into a timing plan:
// the wrong number of approaches or a negative count. It is raised before any
// computation happens, so a failed call never yields a partial plan.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid counts: %s", e.Reason)
}

func invalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}
