package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// ErrSecretNotConfigured is returned by New when the signing secret is
// missing. Verification must never silently accept traffic in that state.
var ErrSecretNotConfigured = errors.New("webhook signing secret is not configured")

// Verifier checks provider webhook signatures against the raw request body.
// It is a pure function of (body, header, secret) and holds no other state.
type Verifier struct {
	secret []byte
}

func New(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify reports whether header matches any supported signature scheme for
// body. The primary scheme is hex HMAC-SHA256; base64 HMAC-SHA256 and hex
// HMAC-SHA512 are kept for integrations configured before the scheme change.
// Comparison is constant-time; candidates of a different length than the
// header are rejected without comparing content.
func (v *Verifier) Verify(body []byte, header string) bool {
	if header == "" {
		return false
	}
	presented := []byte(header)
	for _, candidate := range v.candidates(body) {
		if len(candidate) != len(presented) {
			continue
		}
		if hmac.Equal(candidate, presented) {
			return true
		}
	}
	return false
}

func (v *Verifier) candidates(body []byte) [][]byte {
	h256 := hmac.New(sha256.New, v.secret)
	h256.Write(body)
	sum256 := h256.Sum(nil)

	h512 := hmac.New(sha512.New, v.secret)
	h512.Write(body)
	sum512 := h512.Sum(nil)

	return [][]byte{
		[]byte(hex.EncodeToString(sum256)),
		[]byte(base64.StdEncoding.EncodeToString(sum256)),
		[]byte(hex.EncodeToString(sum512)),
	}
}
