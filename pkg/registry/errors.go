package registry

import "fmt"

// ValidationError is a single validation failure at one spot in the tree.
type ValidationError struct {
	Fn     string // function name
	Arg    string // argument name, empty for function-level failures
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("function %q: %s", e.Fn, e.Reason)
	}
	return fmt.Sprintf("function %q argument %q: %s", e.Fn, e.Arg, e.Reason)
}

// AggregateError collects every validation failure found in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors unwraps an AggregateError, or returns nil for any other
// error value.
func ValidationErrors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}
