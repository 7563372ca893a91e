package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrKeyMissing is returned by a KeySource that has no key to give.
var ErrKeyMissing = errors.New("token key missing")

const keySize = 32

var keyInfo = []byte("goTrust v4.local session key")

// KeySource yields the symmetric key material. It is read once when the
// Manager is built.
type KeySource interface {
	TokenKey() ([]byte, error)
}

// KeyFunc adapts a function to KeySource.
type KeyFunc func() ([]byte, error)

func (f KeyFunc) TokenKey() ([]byte, error) { return f() }

// StaticKey serves fixed key material.
func StaticKey(key []byte) KeySource {
	return KeyFunc(func() ([]byte, error) {
		if len(key) == 0 {
			return nil, ErrKeyMissing
		}
		return key, nil
	})
}

// EnvKey reads key material from an environment variable.
func EnvKey(name string) KeySource {
	return KeyFunc(func() ([]byte, error) {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrKeyMissing, name)
		}
		return []byte(v), nil
	})
}

// deriveKey uses 32-byte material as is and stretches anything else with
// HKDF-SHA256.
func deriveKey(material []byte) ([]byte, error) {
	if len(material) == 0 {
		return nil, ErrKeyMissing
	}
	if len(material) == keySize {
		return material, nil
	}
	out := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, keyInfo), out); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return out, nil
}
