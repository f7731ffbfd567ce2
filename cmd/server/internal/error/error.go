package srverr

import "errors"

var (
	ErrTypeAssertMismatch = errors.New("type assertion mismatch")

	// Request is missing fields or carries values that cannot be used
	ErrValidation = errors.New("validation failed")
	// Reading or writing persisted state failed
	ErrStorage = errors.New("storage failure")
)

// Text of these is shown to clients as is
//
//nolint:staticcheck // capitalised messages
var (
	// The (team, challenge, user) triple already has a submission
	ErrDuplicateSubmission = errors.New("Submission already exists")
	ErrChallengeNotFound   = errors.New("Challenge not found")
	ErrSubmissionNotFound  = errors.New("Submission not found")
	ErrNoTeamSubmissions   = errors.New("No submissions found for this team")
)

// An error whose text is safe to show to the client
type clientError struct {
	kind    error
	message string
}

func (e clientError) Error() string {
	return e.message
}

func (e clientError) Unwrap() error {
	return e.kind
}

// Validation failure carrying `message` as its client facing text
func Validation(message string) error {
	return clientError{kind: ErrValidation, message: message}
}
