package kernelspec

import "errors"

// Standard errors returned by the kernelspec package.
var (
	// ErrNotFound indicates no installed kernelspec matched.
	ErrNotFound = errors.New("kernelspec not found")

	// ErrInvalidName indicates a kernelspec name with characters outside
	// [a-z0-9._-].
	ErrInvalidName = errors.New("invalid kernelspec name")

	// ErrNoArgv indicates a spec with an empty launch command.
	ErrNoArgv = errors.New("kernelspec has no argv")

	// ErrNoConnectionArg indicates argv without a {connection_file}
	// placeholder, so a launched kernel could never find its ports.
	ErrNoConnectionArg = errors.New("kernelspec argv has no {connection_file} placeholder")

	// ErrNoUserDir indicates the per-user kernels directory could not be
	// determined.
	ErrNoUserDir = errors.New("cannot determine user kernels directory")
)
