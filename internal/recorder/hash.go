package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"stockdash/internal/domain"
)

// CanonicalJSON encodes v as RFC 8785 canonical JSON.
func CanonicalJSON(v any) ([]byte, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsoncanonicalizer.Transform(buf)
}

// MatrixHash identifies the content of a matrix computed for a window. Two
// runs that produce the same coefficients hash equal regardless of when
// they ran.
func MatrixHash(window domain.Window, m domain.Matrix) (string, error) {
	buf, err := CanonicalJSON(struct {
		Minutes int           `json:"minutes"`
		Matrix  domain.Matrix `json:"matrix"`
	}{int(window), m})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}
