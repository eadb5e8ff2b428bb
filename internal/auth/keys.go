package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyDerivationSalt = "account-portal/session/v1"
	signingKeyInfo    = "session-signing"
	sealingKeyInfo    = "session-sealing"
)

// SessionKeys holds the cookie signing and sealing keys in memguard enclaves.
type SessionKeys struct {
	signing *memguard.Enclave
	sealing *memguard.Enclave
}

// DeriveSessionKeys expands secret into independent signing and sealing keys with HKDF-SHA256.
func DeriveSessionKeys(secret []byte) (*SessionKeys, error) {
	signing, err := deriveKey(secret, signingKeyInfo, 32)
	if err != nil {
		return nil, err
	}

	sealing, err := deriveKey(secret, sealingKeyInfo, chacha20poly1305.KeySize)
	if err != nil {
		memguard.WipeBytes(signing)
		return nil, err
	}

	// NewEnclave wipes the source slices.
	return &SessionKeys{
		signing: memguard.NewEnclave(signing),
		sealing: memguard.NewEnclave(sealing),
	}, nil
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, secret, []byte(keyDerivationSalt), []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
	}
	return key, nil
}

func (k *SessionKeys) withSigningKey(fn func(key []byte) error) error {
	return withKey(k.signing, fn)
}

func (k *SessionKeys) withSealingKey(fn func(key []byte) error) error {
	return withKey(k.sealing, fn)
}

func withKey(enclave *memguard.Enclave, fn func(key []byte) error) error {
	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open key enclave: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}
