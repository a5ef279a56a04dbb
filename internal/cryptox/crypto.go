// Package cryptox holds the symmetric and password primitives used by the
// server: at-rest sealing of private key blobs and password hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// ErrDecrypt is returned by Open when the blob is truncated, was sealed with a
// different passphrase, or was tampered with.
var ErrDecrypt = errors.New("decrypt failed")

// DeriveKey stretches a passphrase into a 256-bit AES key with Argon2id.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Seal encrypts plaintext with AES-256-GCM under a key derived from
// passphrase. The output layout is salt || nonce || ciphertext, so Open needs
// nothing but the passphrase.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt, err := common.GenerateRandBytes(saltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := common.GenerateRandBytes(nonceSize)
	if err != nil {
		return nil, err
	}

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+aesgcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(blob, passphrase []byte) ([]byte, error) {
	if len(blob) < saltSize+nonceSize {
		return nil, ErrDecrypt
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
