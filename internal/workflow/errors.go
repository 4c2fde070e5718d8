package workflow

// ViolationError signals that an approval action breaks a workflow
// constraint: unknown request, wrong status for the transition, or an
// actor whose role does not match the level. It is a business error the
// caller maps to a 4xx response, and it never leaves partial state.
type ViolationError struct {
	Message string
}

func (e *ViolationError) Error() string {
	return e.Message
}

func violation(message string) error {
	return &ViolationError{Message: message}
}
