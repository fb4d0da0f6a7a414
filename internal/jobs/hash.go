package jobs

import (
	_ "crypto/sha256" // digest.Canonical
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"
)

// Canonicalize returns the RFC 8785 (JCS) form of payload's JSON encoding.
// payload may be a json.RawMessage or any value encoding/json accepts.
func Canonicalize(payload any) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal: %v", ErrInvalidPayload, err)
		}
		raw = b
	}

	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize: %v", ErrInvalidPayload, err)
	}
	return canonical, nil
}

// InputHashOf digests a canonical payload. The result is the hex sha256.
func InputHashOf(canonical []byte) string {
	return digest.FromBytes(canonical).Encoded()
}
