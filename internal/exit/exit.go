package exit

import (
	"errors"
	"fmt"
)

// Process exit codes of the command line tools
const (
	CodeOK       = 0
	CodeError    = 1
	CodeMismatch = 2
)

// Carries an exit code along with an error so the app can exit correctly
type Error struct {
	Err  error
	Code int
}

func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d", e.Code)
	}

	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func (e Error) Unwrap() error {
	return e.Err
}

// Wrap an error with an exit code
func Wrap(code int, err error) error {
	return Error{Code: code, Err: err}
}

// Exit code for `err`: the carried code of an [Error], CodeError for any
// other error and CodeOK for nil
func Code(err error) int {
	if err == nil {
		return CodeOK
	}

	var exitErr Error
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return CodeError
}
