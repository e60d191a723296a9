// Package router adds named routes and prefix groups on top of chi.
//
//	r := router.New()
//	api := r.Group("/filemanager/api", middleware.Authenticate)
//	api.Get("/items", "filemanager.api.items", handler)
//	path, _ := r.URL("filemanager.api.items", nil)
package router

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// RouteInfo describes one registered route. Method is "*" for Handle.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Router owns the chi mux and the name table.
type Router struct {
	root   *Group
	mux    chi.Router
	mu     sync.RWMutex
	named  map[string]string
	routes []RouteInfo
}

// Group registers routes under a prefix with extra middleware.
type Group struct {
	router *Router
	prefix string
	chain  []Middleware
}

func New() *Router {
	r := &Router{mux: chi.NewRouter(), named: map[string]string{}}
	r.root = &Group{router: r, prefix: "/"}
	return r
}

func (r *Router) Group(prefix string, mws ...Middleware) *Group { return r.root.Group(prefix, mws...) }

func (r *Router) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.root.Get(path, name, h, mws...)
}

func (r *Router) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.root.Post(path, name, h, mws...)
}

func (r *Router) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.root.Delete(path, name, h, mws...)
}

func (r *Router) Handler() http.Handler { return r.mux }

// Use adds global middleware. chi requires this before any route is added.
func (r *Router) Use(mws ...Middleware) {
	for _, mw := range mws {
		r.mux.Use(mw)
	}
}

// Handle mounts h for every method, e.g. the metrics endpoint.
func (r *Router) Handle(path, name string, h http.Handler) {
	full := join(path)
	r.mux.Handle(full, h)
	r.record(RouteInfo{Method: "*", Path: full, Name: name})
}

// Path returns the pattern registered under name.
func (r *Router) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.named[name]
	return p, ok
}

// URL fills the {params} of the named route.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	p, ok := r.Path(name)
	if !ok {
		return "", fmt.Errorf("router: no route named %q", name)
	}
	var missing []string
	for _, seg := range strings.Split(p, "/") {
		key, isParam := strings.CutPrefix(seg, "{")
		if !isParam {
			continue
		}
		key = strings.TrimSuffix(key, "}")
		key, _, _ = strings.Cut(key, ":")
		if v, ok := params[key]; ok {
			p = strings.Replace(p, seg, v, 1)
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("router: route %q needs %s", name, strings.Join(missing, ", "))
	}
	return p, nil
}

// Routes lists every registered route sorted by path then method.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	out := slices.Clone(r.routes)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b RouteInfo) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Method, b.Method))
	})
	return out
}

// record panics when name is already taken; route tables are built once at
// boot.
func (r *Router) record(info RouteInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info.Name != "" {
		if prev, taken := r.named[info.Name]; taken {
			panic(fmt.Sprintf("router: name %q already used by %s", info.Name, prev))
		}
		r.named[info.Name] = info.Path
	}
	r.routes = append(r.routes, info)
}

// Group returns a child group. Its middleware runs after the parent's.
func (g *Group) Group(prefix string, mws ...Middleware) *Group {
	return &Group{router: g.router, prefix: join(g.prefix, prefix), chain: concat(g.chain, mws)}
}

// Prefix is the group's normalised path prefix.
func (g *Group) Prefix() string { return g.prefix }

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodGet, path, name, h, mws...)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodPost, path, name, h, mws...)
}

func (g *Group) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodDelete, path, name, h, mws...)
}

// Method registers h for one HTTP method under the group prefix.
func (g *Group) Method(method, path, name string, h http.Handler, mws ...Middleware) {
	full := join(g.prefix, path)
	var wrapped http.Handler = h
	chain := concat(g.chain, mws)
	for i := len(chain) - 1; i >= 0; i-- {
		wrapped = chain[i](wrapped)
	}
	g.router.mux.Method(method, full, wrapped)
	g.router.record(RouteInfo{Method: method, Path: full, Name: name})
}

func concat(a, b []Middleware) []Middleware {
	return append(slices.Clone(a), b...)
}

func join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return "/" + strings.Join(segs, "/")
}
