package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
	"zipperdb.dev/objectstore"
	"zipperdb.dev/store"
	"zipperdb.dev/tree"
	"zipperdb.dev/zipper"
)

// newTestSite builds:
//
//	/            (Site, root)
//	/about       (Page)
//	/news        (Folder)
//	/news/a1     (Page)
//	/news/a2     (Page)
func newTestSite(t *testing.T) (*zipper.Zipper, *codec.Registry) {
	t.Helper()
	reg := codec.NewRegistry()
	require.NoError(t, zipper.RegisterSchemas(reg))
	require.NoError(t, tree.RegisterSchemas(reg))

	ctx := context.Background()
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	bc := codec.NewBinaryCodec(reg)
	objects := objectstore.NewStaticStore(backing, bc, objectstore.WithPrefix("objects/"))

	z := zipper.New(store.NewPrefixed("refs/main/", backing, nil), objects, reg, nil)
	require.NoError(t, z.Open(ctx))
	require.NoError(t, z.Create(ctx, "tester", 0))

	rootKey, err := tree.RootKey()
	require.NoError(t, err)
	root, err := tree.NewSite(reg, "Test Site", "about", "")
	require.NoError(t, err)

	newsKey, err := codec.NewKey(tree.FolderName, "news")
	require.NoError(t, err)
	news, err := tree.NewFolder(reg, "news", "News", rootKey, "", "")
	require.NoError(t, err)

	aboutKey, err := codec.NewKey(tree.PageName, "about")
	require.NoError(t, err)
	about, err := tree.NewPage(reg, "about", "About", rootKey, "", "about body")
	require.NoError(t, err)

	a1Key, err := codec.NewKey(tree.PageName, "a1")
	require.NoError(t, err)
	a1, err := tree.NewPage(reg, "a1", "Article 1", newsKey, "", "a1 body")
	require.NoError(t, err)

	a2Key, err := codec.NewKey(tree.PageName, "a2")
	require.NoError(t, err)
	a2, err := tree.NewPage(reg, "a2", "Article 2", newsKey, "", "a2 body")
	require.NoError(t, err)

	tree.Attach(root, rootKey, news, newsKey)
	tree.Attach(root, rootKey, about, aboutKey)
	tree.Attach(news, newsKey, a1, a1Key)
	tree.Attach(news, newsKey, a2, a2Key)

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "seed site", 1, zipper.Delta{
			rootKey:  zipper.Value(root),
			newsKey:  zipper.Value(news),
			aboutKey: zipper.Value(about),
			a1Key:    zipper.Value(a1),
			a2Key:    zipper.Value(a2),
		})
	}))

	return z, reg
}

func TestResolveRoot(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	rootKey, err := tree.RootKey()
	require.NoError(t, err)

	key, rec, err := tree.Resolve(ctx, z, "/")
	require.NoError(t, err)
	assert.True(t, key.Equal(rootKey))
	assert.Equal(t, "root", rec.Get("name"))
}

func TestResolveNestedPath(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	_, rec, err := tree.Resolve(ctx, z, "/news/a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", rec.Get("name"))
	assert.Equal(t, "a2 body", rec.Get("body"))
}

func TestResolveMissingSegmentIsUndefined(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	_, _, err := tree.Resolve(ctx, z, "/news/missing")
	assert.ErrorIs(t, err, tree.ErrUndefined)
}

func TestPathOfReconstructsAncestorChain(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	key, rec, err := tree.Resolve(ctx, z, "/news/a1")
	require.NoError(t, err)

	p, err := tree.PathOf(ctx, z, key, rec)
	require.NoError(t, err)
	assert.Equal(t, "news/a1", p)
}

func TestPathOfRootIsEmpty(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	rootKey, root, err := tree.Resolve(ctx, z, "/")
	require.NoError(t, err)

	p, err := tree.PathOf(ctx, z, rootKey, root)
	require.NoError(t, err)
	assert.Equal(t, "", p)
}

func TestDescendVisitsDescendantsBreadthFirst(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	_, root, err := tree.Resolve(ctx, z, "/")
	require.NoError(t, err)

	items, err := tree.Descend(ctx, z, root)
	require.NoError(t, err)

	names := make([]string, len(items))
	for i, it := range items {
		names[i], _ = it.Value.Get("name").(string)
	}
	// news and about are direct children (breadth-first level 1), then
	// news's own children follow.
	assert.ElementsMatch(t, []string{"news", "about"}, names[:2])
	assert.ElementsMatch(t, []string{"a1", "a2"}, names[2:])
}

func TestAscendFollowsFolderPointersToRoot(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestSite(t)

	_, a1, err := tree.Resolve(ctx, z, "/news/a1")
	require.NoError(t, err)

	ancestors, err := tree.Ascend(ctx, z, a1)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "news", ancestors[0].Value.Get("name"))
	assert.Equal(t, "root", ancestors[1].Value.Get("name"))
}

func TestIsFolder(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, tree.RegisterSchemas(reg))

	assert.True(t, tree.IsFolder(reg, tree.FolderName))
	assert.True(t, tree.IsFolder(reg, tree.SiteName))
	assert.False(t, tree.IsFolder(reg, tree.PageName))
}
