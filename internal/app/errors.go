package app

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP statuses by the server package.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrClassroomNotFound  = errors.New("classroom not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNotMember          = errors.New("you are not a member of this classroom")
	ErrNotOwner           = errors.New("only the classroom teacher can do this")
	ErrAlreadyMember      = errors.New("you have already joined this classroom")
	ErrNothingToEvaluate  = errors.New("no unevaluated submissions in this classroom")
)

// InvalidError carries a user-facing message for a 400 response.
type InvalidError struct {
	msg string
}

func (e *InvalidError) Error() string {
	return e.msg
}

func invalidf(format string, args ...any) error {
	return &InvalidError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is a request-validation failure.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}
