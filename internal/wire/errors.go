package wire

import "errors"

// Standard errors returned by the wire package.
var (
	// ErrNoDelimiter indicates a frame sequence without the <IDS|MSG>
	// marker.
	ErrNoDelimiter = errors.New("message has no <IDS|MSG> delimiter")

	// ErrTruncated indicates fewer frames than the four required JSON
	// segments.
	ErrTruncated = errors.New("message truncated")

	// ErrBadSignature indicates an HMAC that does not match the message
	// body. The message must be discarded.
	ErrBadSignature = errors.New("message signature mismatch")

	// ErrFrameTooLarge indicates a frame above the decode size limit.
	ErrFrameTooLarge = errors.New("message frame too large")

	// ErrBadScheme indicates a signature scheme other than hmac-sha256.
	ErrBadScheme = errors.New("unsupported signature scheme")
)
