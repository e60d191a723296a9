package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTrip(t *testing.T) {
	s, err := NewSigner("secret")
	require.NoError(t, err)

	tag := s.Sign("payload")
	assert.Len(t, tag, 64)
	assert.True(t, s.Verify("payload", tag))
	assert.False(t, s.Verify("payload2", tag))
}

func TestSigner_RejectsMalformedTags(t *testing.T) {
	s, err := NewSigner("secret")
	require.NoError(t, err)

	for _, tag := range []string{"", "zz", "abcd", s.Sign("payload")[:62]} {
		assert.False(t, s.Verify("payload", tag), "tag %q", tag)
	}
}

func TestSigner_KeysDiffer(t *testing.T) {
	a, _ := NewSigner("one")
	b, _ := NewSigner("two")
	assert.False(t, b.Verify("payload", a.Sign("payload")))
}

func TestNewSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner("")
	assert.ErrorIs(t, err, ErrNoKey)
}
