// Package rbac decides which file manager abilities a caller holds.
//
// The Gate is a pure function of its configuration, the subject and the
// item: it never reads a session, so it is tested without HTTP.
//
//	gate := rbac.NewGate(true, map[string]string{rbac.Delete: "files.delete"})
//	gate.CanDelete(claims, item)
package rbac

import (
	"context"
	"net/http"
	"reflect"

	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/response"
)

// Ability names, also the keys of FILEMANAGER_PERMISSIONS.
const (
	ViewAny   = "view_any"
	View      = "view"
	Create    = "create"
	Update    = "update"
	Delete    = "delete"
	DeleteAny = "delete_any"
	Download  = "download"
)

// Subject is an authenticated caller.
type Subject interface {
	SubjectID() string
	HasPermission(perm string) bool
}

type Gate struct {
	enabled bool
	perms   map[string]string
}

// NewGate copies perms, which maps an ability to the permission a subject
// must hold. Abilities without an entry only require authentication.
func NewGate(enabled bool, perms map[string]string) *Gate {
	cp := make(map[string]string, len(perms))
	for k, v := range perms {
		if v != "" {
			cp[k] = v
		}
	}
	return &Gate{enabled: enabled, perms: cp}
}

func (g *Gate) Enabled() bool { return g != nil && g.enabled }

// Allows applies the shared rule: disabled gates allow everything, a missing
// subject is denied, a configured permission must be held, and otherwise any
// authenticated subject passes.
func (g *Gate) Allows(s Subject, ability string) bool {
	if !g.Enabled() {
		return true
	}
	if isNil(s) {
		return false
	}
	perm, ok := g.perms[ability]
	if !ok {
		return true
	}
	return s.HasPermission(perm)
}

func isNil(s Subject) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func (g *Gate) CanViewAny(s Subject) bool { return g.Allows(s, ViewAny) }

func (g *Gate) CanView(s Subject, _ *filemanager.Item) bool { return g.Allows(s, View) }

func (g *Gate) CanCreate(s Subject) bool { return g.Allows(s, Create) }

func (g *Gate) CanUpdate(s Subject, _ *filemanager.Item) bool { return g.Allows(s, Update) }

func (g *Gate) CanDelete(s Subject, _ *filemanager.Item) bool { return g.Allows(s, Delete) }

func (g *Gate) CanDownload(s Subject, _ *filemanager.Item) bool { return g.Allows(s, Download) }

// CanDeleteAny uses the bulk permission when one is configured and the
// single-item delete rule otherwise.
func (g *Gate) CanDeleteAny(s Subject) bool {
	if g.Enabled() {
		if _, ok := g.perms[DeleteAny]; !ok {
			return g.Allows(s, Delete)
		}
	}
	return g.Allows(s, DeleteAny)
}

// ── Context ──────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithSubject stores the authenticated caller in ctx.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SubjectFrom returns the caller stored by WithSubject, or nil.
func SubjectFrom(ctx context.Context) Subject {
	s, _ := ctx.Value(ctxKey{}).(Subject)
	return s
}

// Require returns middleware that answers 403 unless the request's subject
// holds ability. Item-independent abilities only.
func (g *Gate) Require(ability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := g.Allows(SubjectFrom(r.Context()), ability)
			if ability == DeleteAny {
				allowed = g.CanDeleteAny(SubjectFrom(r.Context()))
			}
			if !allowed {
				response.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
