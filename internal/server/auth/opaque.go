package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const opaqueTokenBytes = 32

// GenerateOpaqueToken returns 32 bytes from crypto/rand as unpadded base64url.
func GenerateOpaqueToken() (string, error) {
	return common.MakeRandURLString(opaqueTokenBytes)
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
