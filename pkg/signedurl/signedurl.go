// Package signedurl issues and checks expiring, tamper-proof links.
//
// The tag covers the request path and every query parameter except
// "signature", including "expires". The host is left out so links survive
// reverse proxies that rewrite it.
package signedurl

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/crypt"
)

const (
	ParamSignature = "signature"
	ParamExpires   = "expires"
)

// ErrInvalidSignature covers every rejection: missing, malformed, forged or
// expired. Callers cannot tell the cases apart.
var ErrInvalidSignature = errors.New("signedurl: invalid signature")

type Signer struct {
	tags *crypt.Signer
	now  func() time.Time
}

func New(secret string) (*Signer, error) {
	tags, err := crypt.NewSigner(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{tags: tags, now: time.Now}, nil
}

// WithClock replaces the time source. Tests only.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func canonical(path string, q url.Values) string {
	c := url.Values{}
	for k, v := range q {
		if k != ParamSignature {
			c[k] = v
		}
	}
	return path + "?" + c.Encode()
}

// Sign appends params, an expiry ttl from now and the signature to rawURL.
func (s *Signer) Sign(rawURL string, params url.Values, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("signedurl: ttl must be positive, got %s", ttl)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("signedurl: parse %q: %w", rawURL, err)
	}

	q := u.Query()
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Del(ParamSignature)
	q.Set(ParamExpires, strconv.FormatInt(s.now().Add(ttl).Unix(), 10))
	q.Set(ParamSignature, s.tags.Sign(canonical(u.EscapedPath(), q)))

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks u. The tag is always computed before the expiry is looked
// at, and every failure maps to ErrInvalidSignature.
func (s *Signer) Verify(u *url.URL) error {
	q := u.Query()
	validTag := s.tags.Verify(canonical(u.EscapedPath(), q), q.Get(ParamSignature))

	expires, err := strconv.ParseInt(q.Get(ParamExpires), 10, 64)
	fresh := err == nil && s.now().Unix() < expires

	if !validTag || !fresh {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Signer) VerifyRequest(r *http.Request) error {
	return s.Verify(r.URL)
}
