package signedurl

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	s, err := New("app-key")
	require.NoError(t, err)
	return s.WithClock(fixedClock(now))
}

func TestSignAndVerify(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	s := newSigner(t, now)

	raw, err := s.Sign("http://localhost:8080/files/stream", url.Values{"disk": {"local"}, "path": {"a b/c.png"}}, time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "1800003600", u.Query().Get(ParamExpires))
	assert.NotEmpty(t, u.Query().Get(ParamSignature))
	assert.NoError(t, s.Verify(u))
}

func TestVerify_IgnoresHostAndParamOrder(t *testing.T) {
	s := newSigner(t, time.Unix(1_800_000_000, 0))
	raw, err := s.Sign("http://internal:8080/files/stream", url.Values{"disk": {"local"}, "path": {"x"}}, time.Minute)
	require.NoError(t, err)

	u, _ := url.Parse(raw)
	q := u.Query()
	moved, _ := url.Parse("https://files.example.com/files/stream?path=x&signature=" +
		q.Get(ParamSignature) + "&expires=" + q.Get(ParamExpires) + "&disk=local")
	assert.NoError(t, s.Verify(moved))
}

func TestVerify_Rejections(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	s := newSigner(t, now)
	raw, err := s.Sign("/files/download", url.Values{"disk": {"local"}, "path": {"a.txt"}}, time.Minute)
	require.NoError(t, err)
	good, _ := url.Parse(raw)

	tamper := func(mut func(q url.Values)) *url.URL {
		u := *good
		q := u.Query()
		mut(q)
		u.RawQuery = q.Encode()
		return &u
	}

	cases := map[string]*url.URL{
		"missing signature": tamper(func(q url.Values) { q.Del(ParamSignature) }),
		"malformed":         tamper(func(q url.Values) { q.Set(ParamSignature, "not-hex") }),
		"changed path":      tamper(func(q url.Values) { q.Set("path", "b.txt") }),
		"extra param":       tamper(func(q url.Values) { q.Set("filename", "evil.exe") }),
		"extended expiry":   tamper(func(q url.Values) { q.Set(ParamExpires, "1900000000") }),
		"missing expiry":    tamper(func(q url.Values) { q.Del(ParamExpires) }),
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Verify(u), ErrInvalidSignature)
		})
	}

	other, _ := url.Parse(raw)
	other.Path = "/files/stream"
	assert.ErrorIs(t, s.Verify(other), ErrInvalidSignature)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	s := newSigner(t, now)
	raw, err := s.Sign("/files/stream", url.Values{"disk": {"local"}}, time.Minute)
	require.NoError(t, err)
	u, _ := url.Parse(raw)

	s.WithClock(fixedClock(now.Add(time.Minute)))
	assert.ErrorIs(t, s.Verify(u), ErrInvalidSignature)
}

func TestSign_RequiresPositiveTTL(t *testing.T) {
	s := newSigner(t, time.Now())
	_, err := s.Sign("/files/stream", nil, 0)
	assert.Error(t, err)
}
