package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoChoices is returned for a required choice field without options.
	ErrNoChoices = errors.New("prompt: no choices available")
)
