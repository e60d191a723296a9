package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/filemanager/pkg/auth"
	"github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/session"
)

// SessionController trades a bearer token for a session cookie so the
// browser can load gateway links in media elements.
type SessionController struct {
	sessions *session.Store
}

func NewSessionController(sessions *session.Store) *SessionController {
	return &SessionController{sessions: sessions}
}

// Open needs the Authorization header; a cookie cannot open another session.
func (sc *SessionController) Open(c *ctx.Context) {
	claims, ok := c.Subject().(*auth.Claims)
	if !ok {
		c.Error(http.StatusUnauthorized, "Unauthorized")
		return
	}
	expires, err := sc.sessions.Open(c.Context(), c.W, claims)
	if err != nil {
		c.Log().Error("session: open failed", "error", err)
		c.Error(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Created(map[string]any{"expires_at": expires.Unix()})
}

// Close is idempotent.
func (sc *SessionController) Close(c *ctx.Context) {
	if err := sc.sessions.Close(c.W, c.R); err != nil && !errors.Is(err, session.ErrNoSession) {
		c.Log().Warn("session: close failed", "error", err)
	}
	c.Success(nil)
}
