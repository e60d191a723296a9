package controllers

import (
	"net/http"

	gql "github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/filemanager/pkg/ctx"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/graphql"
	"github.com/shashiranjanraj/filemanager/pkg/rbac"
)

// GraphQLController answers read-only queries over the adapter.
type GraphQLController struct {
	schema gql.Schema
	gate   *rbac.Gate
}

func NewGraphQLController(adapter filemanager.Adapter, gate *rbac.Gate) (*GraphQLController, error) {
	schema, err := graphql.NewSchema(adapter)
	if err != nil {
		return nil, err
	}
	return &GraphQLController{schema: schema, gate: gate}, nil
}

// Query executes one request. Resolver failures are reported in the
// "errors" member with a 200, as GraphQL clients expect.
func (gc *GraphQLController) Query(c *ctx.Context) {
	if !gc.gate.CanViewAny(c.Subject()) {
		c.Forbidden()
		return
	}
	var req graphql.Request
	if !c.BindJSON(&req) {
		return
	}
	res := graphql.Execute(c.Context(), gc.schema, req)
	if res.HasErrors() {
		c.Log().Debug("graphql: query errors", "errors", len(res.Errors))
	}
	c.JSON(http.StatusOK, res)
}
