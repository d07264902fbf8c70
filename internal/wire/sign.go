package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces and checks message signatures. A signer with no key is
// valid: it emits empty signatures and accepts anything, which is how
// kernels started with an empty key run.
type Signer struct {
	key []byte
}

// NewSigner builds a signer for a connection file's scheme and key.
func NewSigner(scheme, key string) (*Signer, error) {
	if key == "" {
		return &Signer{}, nil
	}
	switch scheme {
	case "", "hmac-sha256":
	default:
		return nil, ErrBadScheme
	}
	return &Signer{key: []byte(key)}, nil
}

// Enabled reports whether messages are actually signed.
func (s *Signer) Enabled() bool { return len(s.key) > 0 }

// Sign returns the lowercase hex HMAC over the given segments in order.
func (s *Signer) Sign(segments ...[]byte) []byte {
	if !s.Enabled() {
		return []byte{}
	}
	mac := hmac.New(sha256.New, s.key)
	for _, seg := range segments {
		mac.Write(seg)
	}
	digest := mac.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(digest)))
	hex.Encode(out, digest)
	return out
}

// Verify checks a received signature in constant time.
func (s *Signer) Verify(signature []byte, segments ...[]byte) bool {
	if !s.Enabled() {
		return true
	}
	return hmac.Equal(signature, s.Sign(segments...))
}
