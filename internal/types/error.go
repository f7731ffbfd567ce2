package types

// Body of every error response. Detail carries the underlying error text and is
// left out in production.
type Error struct {
	Detail  *string `json:"error,omitempty"`
	Message string  `json:"message"`
}

func StringError(message string) Error {
	return Error{Message: message}
}

func DetailedError(message string, err error) Error {
	if err == nil {
		return StringError(message)
	}

	detail := err.Error()
	return Error{Message: message, Detail: &detail}
}
