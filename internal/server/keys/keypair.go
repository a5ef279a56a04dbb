package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const (
	pemTypeRSAPrivate = "RSA PRIVATE KEY"
	pemTypePKCS8      = "PRIVATE KEY"
	pemTypePublic     = "PUBLIC KEY"
)

// generateRSAKey is a seam for tests.
var generateRSAKey = rsa.GenerateKey

// GenerateKeyPair creates a fresh RSA key pair of the given size.
func GenerateKeyPair(bits int) (*KeyPair, []byte, error) {
	if bits < MinBits {
		return nil, nil, fmt.Errorf("%w: %d-bit key is below the %d-bit minimum", common.ErrKeyGenerate, bits, MinBits)
	}
	priv, err := generateRSAKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrKeyGenerate, err)
	}
	pair, err := newKeyPair(priv)
	if err != nil {
		return nil, nil, err
	}
	return pair, EncodePrivateKeyPEM(priv), nil
}

func newKeyPair(priv *rsa.PrivateKey) (*KeyPair, error) {
	pubPEM, err := EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PrivateKey:  priv,
		PublicKey:   &priv.PublicKey,
		PublicPEM:   pubPEM,
		Fingerprint: Fingerprint(pubPEM),
	}, nil
}

// EncodePrivateKeyPEM encodes priv as a PKCS#1 "RSA PRIVATE KEY" block.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeRSAPrivate,
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// EncodePublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// Fingerprint returns the hex SHA-256 of a serialized public key.
func Fingerprint(publicPEM []byte) string {
	sum := sha256.Sum256(publicPEM)
	return hex.EncodeToString(sum[:])
}

// ParseKeyPair decodes a stored pair and checks that the public half belongs
// to the private half. Any problem is reported as common.ErrKeyCorrupt.
func ParseKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyCorrupt, err)
	}
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyCorrupt, err)
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, fmt.Errorf("%w: public key does not match private key", common.ErrKeyCorrupt)
	}

	return &KeyPair{
		PrivateKey:  priv,
		PublicKey:   pub,
		PublicPEM:   append([]byte(nil), publicPEM...),
		Fingerprint: Fingerprint(publicPEM),
	}, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM")
	}

	var priv *rsa.PrivateKey
	switch block.Type {
	case pemTypeRSAPrivate:
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs1 private key: %w", err)
		}
		priv = k
	case pemTypePKCS8:
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs8 private key: %w", err)
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", k)
		}
		priv = rk
	default:
		return nil, fmt.Errorf("unexpected private key block %q", block.Type)
	}

	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("validate private key: %w", err)
	}
	return priv, nil
}

func parsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM")
	}
	if block.Type != pemTypePublic {
		return nil, fmt.Errorf("unexpected public key block %q", block.Type)
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", k)
	}
	return pub, nil
}
