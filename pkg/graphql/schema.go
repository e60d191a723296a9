// Package graphql exposes the read side of a file manager adapter as a
// GraphQL schema:
//
//	query {
//	  items(path: "docs") { id name isFolder formattedSize }
//	  folderTree { name fileCount children { name } }
//	}
package graphql

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
)

// Request is the standard GraphQL-over-HTTP POST body.
type Request struct {
	Query         string         `json:"query" validate:"required"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// fromMap resolves a field of an item already flattened by Item.ToMap.
func fromMap(key string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		if m, ok := p.Source.(map[string]any); ok {
			return m[key], nil
		}
		return nil, nil
	}
}

func itemFields() graphql.Fields {
	fields := graphql.Fields{}
	add := func(name, key string, t graphql.Output) {
		fields[name] = &graphql.Field{Type: t, Resolve: fromMap(key)}
	}
	add("id", "id", graphql.NewNonNull(graphql.String))
	add("name", "name", graphql.NewNonNull(graphql.String))
	add("path", "path", graphql.String)
	add("parentPath", "parent_path", graphql.String)
	add("isFolder", "is_folder", graphql.Boolean)
	add("isFile", "is_file", graphql.Boolean)
	add("size", "size", graphql.Float)
	add("formattedSize", "formatted_size", graphql.String)
	add("mimeType", "mime_type", graphql.String)
	add("extension", "extension", graphql.String)
	add("lastModified", "last_modified", graphql.Float)
	add("thumbnailUrl", "thumbnail_url", graphql.String)
	add("duration", "duration", graphql.Int)
	add("formattedDuration", "formatted_duration", graphql.String)
	add("isVideo", "is_video", graphql.Boolean)
	add("isImage", "is_image", graphql.Boolean)
	add("isAudio", "is_audio", graphql.Boolean)
	add("isDocument", "is_document", graphql.Boolean)
	add("depth", "depth", graphql.Int)
	add("fileType", "file_type", graphql.String)
	add("category", "category", graphql.String)
	add("canPreview", "can_preview", graphql.Boolean)
	add("viewer", "viewer", graphql.String)
	return fields
}

func toMaps(items []filemanager.Item) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i] = item.ToMap()
	}
	return out
}

// NewSchema builds the query-only schema over a.
func NewSchema(a filemanager.Adapter) (graphql.Schema, error) {
	item := graphql.NewObject(graphql.ObjectConfig{Name: "Item", Fields: itemFields()})

	var folderNode *graphql.Object
	folderNode = graphql.NewObject(graphql.ObjectConfig{
		Name: "FolderNode",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"path":      &graphql.Field{Type: graphql.String},
				"depth":     &graphql.Field{Type: graphql.Int},
				"fileCount": &graphql.Field{Type: graphql.Int},
				"children":  &graphql.Field{Type: graphql.NewList(folderNode)},
			}
		}),
	})

	breadcrumb := graphql.NewObject(graphql.ObjectConfig{
		Name: "Breadcrumb",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"path": &graphql.Field{Type: graphql.String},
		},
	})

	pathArg := graphql.FieldConfigArgument{
		"path": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
	}
	listing := func(list func(context.Context, string) ([]filemanager.Item, error)) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (any, error) {
			path, _ := p.Args["path"].(string)
			items, err := list(p.Context, path)
			if err != nil {
				return nil, err
			}
			return toMaps(items), nil
		}
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"modeName": &graphql.Field{
				Type: graphql.String,
				Resolve: func(graphql.ResolveParams) (any, error) {
					return a.ModeName(), nil
				},
			},
			"items": &graphql.Field{
				Type:    graphql.NewList(item),
				Args:    pathArg,
				Resolve: listing(a.Items),
			},
			"folders": &graphql.Field{
				Type:    graphql.NewList(item),
				Args:    pathArg,
				Resolve: listing(a.Folders),
			},
			"item": &graphql.Field{
				Type: item,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					found, err := a.Item(p.Context, id)
					if err != nil || found == nil {
						return nil, err
					}
					return found.ToMap(), nil
				},
			},
			"folderTree": &graphql.Field{
				Type: graphql.NewList(folderNode),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return a.FolderTree(p.Context)
				},
			},
			"breadcrumbs": &graphql.Field{
				Type: graphql.NewList(breadcrumb),
				Args: pathArg,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					path, _ := p.Args["path"].(string)
					return a.Breadcrumbs(p.Context, path)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// Execute runs req against schema.
func Execute(ctx context.Context, schema graphql.Schema, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}
