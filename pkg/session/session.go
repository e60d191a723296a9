// Package session gives browsers a cookie identity for the file manager.
//
// A session is opened from an already verified bearer token and stored in
// the cache (Redis, or memory). The cookie only carries a random id. Media
// elements such as <img> and <video> cannot send an Authorization header,
// so gateway links for authenticated disks rely on this cookie instead.
//
// Usage:
//
//	sessions := session.New(store, session.DefaultOptions())
//	r.Use(middleware.Authenticate)
//	r.Use(sessions.Middleware)
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/auth"
	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
)

// ErrNoSession is returned by Close when the request carries no cookie.
var ErrNoSession = errors.New("session: no session cookie")

// Options configures the cookie and the server-side lifetime.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
	Path       string
}

// DefaultOptions returns a two hour, HttpOnly, SameSite=Lax cookie.
func DefaultOptions() Options {
	return Options{
		CookieName: "filemanager_session",
		TTL:        2 * time.Hour,
		SameSite:   http.SameSiteLaxMode,
		Path:       "/",
	}
}

// Store opens, resolves and closes sessions.
type Store struct {
	cache cache.Store
	opts  Options
	now   func() time.Time
}

func New(store cache.Store, opts Options) *Store {
	def := DefaultOptions()
	if opts.CookieName == "" {
		opts.CookieName = def.CookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.SameSite == 0 {
		opts.SameSite = def.SameSite
	}
	return &Store{cache: store, opts: opts, now: time.Now}
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func key(id string) string { return cache.Key("session", id) }

// Open stores claims under a fresh id and sets the cookie. The session never
// outlives the token it was opened from.
func (s *Store) Open(ctx context.Context, w http.ResponseWriter, claims *auth.Claims) (time.Time, error) {
	ttl := s.opts.TTL
	if claims.ExpiresAt != nil {
		ttl = min(ttl, claims.ExpiresAt.Sub(s.now()))
	}
	if ttl <= 0 {
		return time.Time{}, errors.New("session: token already expired")
	}

	id, err := newID()
	if err != nil {
		return time.Time{}, fmt.Errorf("session: new id: %w", err)
	}
	if err := s.cache.Set(ctx, key(id), claims, ttl); err != nil {
		return time.Time{}, fmt.Errorf("session: save: %w", err)
	}

	expires := s.now().Add(ttl)
	http.SetCookie(w, s.cookie(id, int(ttl/time.Second)))
	return expires, nil
}

// Load resolves the request's cookie. It returns nil for a missing, unknown
// or expired session.
func (s *Store) Load(r *http.Request) *auth.Claims {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	claims := new(auth.Claims)
	if !s.cache.Get(r.Context(), key(c.Value), claims) {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return nil
	}
	return claims
}

// Close deletes the session and expires the cookie.
func (s *Store) Close(w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil || c.Value == "" {
		return ErrNoSession
	}
	http.SetCookie(w, s.cookie("", -1))
	if err := s.cache.Del(r.Context(), key(c.Value)); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    value,
		Path:     s.opts.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	}
}

// Middleware attaches the session's caller to GET and HEAD requests that
// carry no bearer token. Other methods still need the header, so a cookie
// alone never changes anything.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		if rbac.SubjectFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		claims := s.Load(r)
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := rbac.WithSubject(r.Context(), claims)
		ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("user_id", claims.UserID, "via", "session"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
