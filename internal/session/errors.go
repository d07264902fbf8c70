package session

import "errors"

// Standard errors returned by the session package.
var (
	// ErrNoKernel indicates an evaluation was requested on a session
	// with no kernel attached.
	ErrNoKernel = errors.New("no kernel attached to session")

	// ErrEmptySource indicates the resolved source was blank.
	ErrEmptySource = errors.New("nothing to evaluate")
)
