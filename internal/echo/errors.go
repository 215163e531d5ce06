package echo

import "github.com/pkg/errors"

var (
	// ErrUnderStopCondition - returns in case if Server is under stop condition
	// and will not accept any new listeners.
	ErrUnderStopCondition = errors.New("echo.Server: under stop condition")

	// ErrAlreadyStarted - returns when Server is already serving a listener.
	ErrAlreadyStarted = errors.New("echo.Server: already serving a listener")
)
