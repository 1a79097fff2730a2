package exam

import "fmt"

// Error is a typed engine failure carrying the stable wire status code.
// Codes are fixed by the exam client protocol and must not change.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	// ErrInvalidParam - malformed or missing required input, caller fault
	ErrInvalidParam = &Error{Code: 4000, Msg: "invalid request param"}
	// ErrExamNotExist - no exam with such ID, active or historical
	ErrExamNotExist = &Error{Code: 4001, Msg: "exam does not exist"}
	// ErrExamFinished - requested slot is past the last question
	ErrExamFinished = &Error{Code: 5100, Msg: "exam is finished"}
	// ErrInitExamFailed - the question pool can't satisfy the template
	ErrInitExamFailed = &Error{Code: 5101, Msg: "can't assemble exam questions"}
	// ErrGetQuestionFailed - slot lookup failed unexpectedly
	ErrGetQuestionFailed = &Error{Code: 5102, Msg: "can't get question info"}
	// ErrInProcessing - not a failure, a retry-later signal while grading runs
	ErrInProcessing = &Error{Code: 5104, Msg: "grading in process"}
	// ErrInternal - collaborator or persistence failure
	ErrInternal = &Error{Code: 6000, Msg: "internal service error"}
)

// wrapErr attaches the cause but keeps the typed error matchable
func wrapErr(e *Error, cause error) error {
	if cause == nil {
		return e
	}
	return fmt.Errorf("%w: %v", e, cause)
}

