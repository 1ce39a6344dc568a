package tgc

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error is a Bot API failure: ok=false in the response body, or a non-2xx
// status on a file download.
type Error struct {
	Method      string
	Code        int
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// AsError unwraps a *Error from err.
func AsError(err error) (*Error, bool) {
	var tgErr *Error
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}
