package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/app/routes"
	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/migration"
	"github.com/shashiranjanraj/filemanager/pkg/router"
)

func TestPrintRoutes(t *testing.T) {
	r := router.New()
	routes.RegisterFileManager(r, "files", routes.Handlers{})

	var out bytes.Buffer
	require.NoError(t, printRoutes(&out, r.Routes()))

	s := out.String()
	assert.Contains(t, s, "METHOD")
	assert.Regexp(t, `GET\s+/files/stream\s+filemanager.stream`, s)
	assert.Regexp(t, `POST\s+/files/api/delete-many\s+filemanager.api.delete_many`, s)
	assert.Regexp(t, `\*\s+/metrics\s+metrics`, s)
}

func TestPrintRoutesEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRoutes(&out, nil))
	assert.Equal(t, "No routes registered.\n", out.String())
}

func TestPrintTree(t *testing.T) {
	var out bytes.Buffer
	printTree(&out, []filemanager.FolderNode{
		{Name: "docs", FileCount: 1, Children: []filemanager.FolderNode{
			{Name: "old", FileCount: 3},
		}},
		{Name: "empty"},
	}, 0)

	assert.Equal(t, "docs/ (1 file)\n  old/ (3 files)\nempty/ (0 files)\n", out.String())
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStatus(&out, []migration.StatusRow{
		{Name: "001_items", Ran: true, Batch: 1},
		{Name: "002_tags"},
	}))

	s := out.String()
	assert.Regexp(t, `001_items\s+Ran\s+1`, s)
	assert.Regexp(t, `002_tags\s+Pending\s+-`, s)
}
