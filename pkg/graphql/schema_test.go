package graphql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	fmgraphql "github.com/shashiranjanraj/filemanager/pkg/graphql"
	"github.com/shashiranjanraj/filemanager/pkg/storage"
)

func newSchemaFixture(t *testing.T) fmgraphqlFixture {
	t.Helper()
	disk := storage.NewMemoryDisk()
	require.NoError(t, disk.Put("docs/report.pdf", make([]byte, 1536)))
	require.NoError(t, disk.Put("docs/sub/notes.txt", []byte("hi")))
	require.NoError(t, disk.Put("song.mp3", []byte("id3")))

	adapter := filemanager.NewStorageAdapter(disk, filemanager.StorageOptions{DiskName: "local"})
	schema, err := fmgraphql.NewSchema(adapter)
	require.NoError(t, err)
	return fmgraphqlFixture{run: func(query string, vars map[string]any) map[string]any {
		res := fmgraphql.Execute(context.Background(), schema, fmgraphql.Request{Query: query, Variables: vars})
		require.Empty(t, res.Errors)
		data, ok := res.Data.(map[string]any)
		require.True(t, ok)
		return data
	}}
}

type fmgraphqlFixture struct {
	run func(query string, vars map[string]any) map[string]any
}

func TestItemsQuery(t *testing.T) {
	f := newSchemaFixture(t)
	data := f.run(`query($p: String) { items(path: $p) { id name isFolder formattedSize category } }`, map[string]any{"p": "docs"})

	items := data["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "sub", first["name"])
	assert.Equal(t, true, first["isFolder"])

	second := items[1].(map[string]any)
	assert.Equal(t, "docs/report.pdf", second["id"])
	assert.Equal(t, "1.5 KB", second["formattedSize"])
	assert.Equal(t, "document", second["category"])
}

func TestItemQuery(t *testing.T) {
	f := newSchemaFixture(t)
	data := f.run(`{ item(id: "song.mp3") { name isAudio } missing: item(id: "nope") { name } modeName }`, nil)

	assert.Equal(t, map[string]any{"name": "song.mp3", "isAudio": true}, data["item"])
	assert.Nil(t, data["missing"])
	assert.Equal(t, filemanager.ModeStorage, data["modeName"])
}

func TestTreeAndBreadcrumbs(t *testing.T) {
	f := newSchemaFixture(t)
	data := f.run(`{
		folderTree { name fileCount children { name path depth fileCount } }
		breadcrumbs(path: "docs/sub") { name path }
	}`, nil)

	tree := data["folderTree"].([]any)
	require.Len(t, tree, 1)
	docs := tree[0].(map[string]any)
	assert.Equal(t, "docs", docs["name"])
	assert.Equal(t, 1, docs["fileCount"])
	children := docs["children"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, map[string]any{"name": "sub", "path": "docs/sub", "depth": 1, "fileCount": 1}, children[0])

	crumbs := data["breadcrumbs"].([]any)
	require.Len(t, crumbs, 2)
	assert.Equal(t, map[string]any{"name": "docs", "path": "docs"}, crumbs[0])
}

func TestInvalidQueryReportsErrors(t *testing.T) {
	disk := storage.NewMemoryDisk()
	schema, err := fmgraphql.NewSchema(filemanager.NewStorageAdapter(disk, filemanager.StorageOptions{}))
	require.NoError(t, err)

	res := fmgraphql.Execute(context.Background(), schema, fmgraphql.Request{Query: `{ nope }`})
	assert.NotEmpty(t, res.Errors)
}
