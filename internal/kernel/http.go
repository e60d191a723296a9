// Package kernel assembles the file manager: it boots the disks, the
// database, the tree cache and the adapter, then builds the HTTP handler
// with the global middleware stack.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/filemanager/app/controllers"
	"github.com/shashiranjanraj/filemanager/app/routes"
	"github.com/shashiranjanraj/filemanager/app/services"
	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/cache"
	"github.com/shashiranjanraj/filemanager/pkg/database"
	"github.com/shashiranjanraj/filemanager/pkg/event"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/filetype"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
	"github.com/shashiranjanraj/filemanager/pkg/metrics"
	"github.com/shashiranjanraj/filemanager/pkg/middleware"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
	"github.com/shashiranjanraj/filemanager/pkg/reqid"
	"github.com/shashiranjanraj/filemanager/pkg/router"
	"github.com/shashiranjanraj/filemanager/pkg/session"
	"github.com/shashiranjanraj/filemanager/pkg/signedurl"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
	"github.com/shashiranjanraj/filemanager/pkg/workerpool"
)

// Options are the already-connected collaborators of a Kernel. Boot fills
// them from config; tests build them by hand.
type Options struct {
	Config config.FileManagerConfig
	AppURL string
	AppKey string

	DB          *gorm.DB // required in database mode
	Disks       *storage.Manager
	Cache       cache.Store // nil disables the folder tree cache
	CacheDriver string
	Sessions    cache.Store // nil keeps browser sessions in memory
	Logger      *slog.Logger
}

// Kernel owns every long-lived component of a running file manager.
type Kernel struct {
	Config   config.FileManagerConfig
	DB       *gorm.DB
	Disks    *storage.Manager
	Adapter  filemanager.Adapter
	Gate     *rbac.Gate
	Signer   *signedurl.Signer
	Links    *services.LinkBuilder
	Events   *event.Dispatcher
	Sessions *session.Store

	pool   *workerpool.Pool
	closer func() error
}

// New wires the adapter, the gate and the link builder from opts.
func New(opts Options) (*Kernel, error) {
	if opts.Disks == nil {
		return nil, errors.New("kernel: no disks configured")
	}
	log := opts.Logger
	if log == nil {
		log = logger.L
	}

	signer, err := signedurl.New(opts.AppKey)
	if err != nil {
		return nil, fmt.Errorf("kernel: url signer: %w", err)
	}
	links := services.NewLinkBuilder(signer, opts.AppURL, opts.Config.RoutePrefix, opts.Config.URLExpiration)

	events := event.New()
	for _, name := range []string{
		filemanager.EventCreated, filemanager.EventUploaded, filemanager.EventRenamed,
		filemanager.EventMoved, filemanager.EventDeleted,
	} {
		events.Listen(name, logEvent(log, name))
	}

	pool := workerpool.New(opts.Config.MoveConcurrency)
	adapter, err := services.NewAdapter(opts.Config, services.Deps{
		DB:       opts.DB,
		Disks:    opts.Disks,
		Registry: filetype.NewDefaultRegistry(),
		Links:    links,
		Cache:    services.MeterCache(opts.Cache, opts.CacheDriver),
		Events:   events,
		Logger:   log,
		Pool:     pool,
	})
	if err != nil {
		pool.Shutdown()
		return nil, err
	}

	sessionStore := opts.Sessions
	if sessionStore == nil {
		sessionStore = cache.NewMemoryStore()
	}

	return &Kernel{
		Config:  opts.Config,
		DB:      opts.DB,
		Disks:   opts.Disks,
		Adapter: adapter,
		Gate:    rbac.NewGate(opts.Config.AuthEnabled, opts.Config.Permissions),
		Signer:  signer,
		Links:   links,
		Events:  events,
		Sessions: session.New(sessionStore, session.Options{
			CookieName: opts.Config.SessionCookie,
			TTL:        opts.Config.SessionTTL,
			Secure:     opts.Config.SessionSecure,
			Path:       "/" + opts.Config.RoutePrefix,
		}),
		pool: pool,
	}, nil
}

func logEvent(log *slog.Logger, name string) event.Handler {
	return func(payload any) {
		ev, ok := payload.(filemanager.ItemEvent)
		if !ok {
			return
		}
		log.Debug("filemanager event", "event", name, "mode", ev.Mode, "id", ev.ID, "from", ev.From, "to", ev.To)
	}
}

// Boot reads config and connects everything New needs. The database is only
// opened in database mode. An unreachable Redis falls back to an in-process
// cache.
func Boot(ctx context.Context) (*Kernel, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("kernel: load config: %w", err)
	}
	cfg := config.FileManager()

	opts := Options{
		Config: cfg,
		AppURL: config.AppURL(),
		AppKey: config.AppKey(),
		Disks:  storage.Connect(),
	}

	var closers []func() error
	if cfg.Mode == filemanager.ModeDatabase {
		db, err := database.Connect()
		if err != nil {
			return nil, err
		}
		opts.DB = db
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, sqlDB.Close)
		}
	}

	// Sessions always need a store; the tree cache only when enabled.
	var (
		store  cache.Store
		driver string
	)
	if rs, err := cache.Connect(ctx); err != nil {
		logger.Warn("kernel: redis unavailable, using in-memory cache and sessions", "error", err)
		store, driver = cache.NewMemoryStore(), "memory"
	} else {
		store, driver = rs, "redis"
		closers = append(closers, rs.Close)
	}
	opts.Sessions = store
	if cfg.TreeCacheTTL > 0 {
		opts.Cache, opts.CacheDriver = store, driver
	}

	k, err := New(opts)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	k.closer = func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	logger.Info("file manager booted", "mode", cfg.Mode, "disk", cfg.Disk, "disks", opts.Disks.Names(), "auth", cfg.AuthEnabled)
	return k, nil
}

// Router registers every route on a fresh router with the global middleware
// stack, outermost first:
//
//  1. metrics: total latency including panics
//  2. recovery
//  3. request id, before anything logs
//  4. access log tagged with the request id
//  5. bearer token authentication
//  6. session cookie, for GET and HEAD without a bearer token
func (k *Kernel) Router() (*router.Router, error) {
	gql, err := controllers.NewGraphQLController(k.Adapter, k.Gate)
	if err != nil {
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.Authenticate)
	r.Use(k.Sessions.Middleware)

	routes.RegisterFileManager(r, k.Config.RoutePrefix, routes.Handlers{
		Gateway: controllers.NewFileStreamController(controllers.GatewayOptions{
			Signer:      k.Signer,
			Disks:       k.Disks,
			Adapter:     k.Adapter,
			Gate:        k.Gate,
			AuthDisks:   k.Config.AuthDisks,
			PublicDisks: k.Config.PublicDisks,
		}),
		API:     controllers.NewFileManagerController(k.Adapter, k.Gate, k.Config.MaxUploadBytes),
		GraphQL: gql,
		Session: controllers.NewSessionController(k.Sessions),
	})
	return r, nil
}

// Handler is Router().Handler().
func (k *Kernel) Handler() (http.Handler, error) {
	r, err := k.Router()
	if err != nil {
		return nil, err
	}
	return r.Handler(), nil
}

// Close stops the move worker pool and releases connections opened by Boot.
func (k *Kernel) Close() error {
	k.pool.Shutdown()
	if k.closer != nil {
		return k.closer()
	}
	return nil
}
