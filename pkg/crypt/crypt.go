// Package crypt derives keys from APP_KEY and produces HMAC-SHA256 tags.
//
// Usage:
//
//	s, err := crypt.NewSigner(config.AppKey())
//	tag := s.Sign("/files/stream?disk=local&expires=1767225600")
//	ok := s.Verify("/files/stream?disk=local&expires=1767225600", tag)
package crypt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/shashiranjanraj/filemanager/config"
)

// ErrNoKey is returned when neither APP_KEY nor JWT_SECRET is configured.
var ErrNoKey = errors.New("crypt: APP_KEY not configured")

// DeriveKey stretches any secret to a fixed 32-byte key via SHA-256.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoKey
	}
	h := sha256.Sum256([]byte(secret))
	return h[:], nil
}

// Signer computes and checks hex-encoded HMAC-SHA256 tags.
type Signer struct {
	key []byte
}

func NewSigner(secret string) (*Signer, error) {
	k, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{key: k}, nil
}

// Default builds a Signer from the configured APP_KEY.
func Default() (*Signer, error) {
	return NewSigner(config.AppKey())
}

func (s *Signer) mac(msg string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(msg))
	return m.Sum(nil)
}

// Sign returns the lowercase hex tag for msg.
func (s *Signer) Sign(msg string) string {
	return hex.EncodeToString(s.mac(msg))
}

// Verify reports whether tag authenticates msg. The expected tag is always
// computed and compared in constant time, even when tag is not valid hex.
func (s *Signer) Verify(msg, tag string) bool {
	expected := s.mac(msg)
	got, err := hex.DecodeString(tag)
	if err != nil || len(got) != len(expected) {
		got = make([]byte, len(expected))
		hmac.Equal(expected, got)
		return false
	}
	return hmac.Equal(expected, got)
}
