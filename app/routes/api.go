package routes

import (
	"github.com/shashiranjanraj/filemanager/app/controllers"
	"github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/metrics"
	"github.com/shashiranjanraj/filemanager/pkg/router"
)

// Handlers are the controllers mounted under the route prefix.
type Handlers struct {
	Gateway *controllers.FileStreamController
	API     *controllers.FileManagerController
	GraphQL *controllers.GraphQLController
	Session *controllers.SessionController
}

// RegisterFileManager mounts the streaming gateway, the browser session
// endpoints, the JSON API and the GraphQL endpoint under /{prefix}, plus
// /metrics at the root.
func RegisterFileManager(r *router.Router, prefix string, h Handlers) {
	r.Handle("/metrics", "metrics", metrics.Handler())

	fm := r.Group(prefix)
	fm.Get("/stream", "filemanager.stream", h.Gateway.Stream)
	fm.Get("/download", "filemanager.download", h.Gateway.Download)
	fm.Post("/graphql", "filemanager.graphql", ctx.Wrap(h.GraphQL.Query))
	fm.Post("/session", "filemanager.session.open", ctx.Wrap(h.Session.Open))
	fm.Delete("/session", "filemanager.session.close", ctx.Wrap(h.Session.Close))

	api := fm.Group("/api")
	api.Get("/items", "filemanager.api.items", ctx.Wrap(h.API.Items))
	api.Get("/folders", "filemanager.api.folders", ctx.Wrap(h.API.Folders))
	api.Get("/item", "filemanager.api.item", ctx.Wrap(h.API.Item))
	api.Get("/tree", "filemanager.api.tree", ctx.Wrap(h.API.Tree))
	api.Get("/breadcrumbs", "filemanager.api.breadcrumbs", ctx.Wrap(h.API.Breadcrumbs))
	api.Get("/url", "filemanager.api.url", ctx.Wrap(h.API.URL))

	api.Post("/folders", "filemanager.api.folders.create", ctx.Wrap(h.API.CreateFolder))
	api.Post("/upload", "filemanager.api.upload", ctx.Wrap(h.API.Upload))
	api.Post("/rename", "filemanager.api.rename", ctx.Wrap(h.API.Rename))
	api.Post("/move", "filemanager.api.move", ctx.Wrap(h.API.Move))
	api.Post("/delete", "filemanager.api.delete", ctx.Wrap(h.API.Delete))
	api.Post("/delete-many", "filemanager.api.delete_many", ctx.Wrap(h.API.DeleteMany))
}
