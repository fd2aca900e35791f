package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
	"zipperdb.dev/objectstore"
	"zipperdb.dev/query"
	"zipperdb.dev/store"
	"zipperdb.dev/tree"
	"zipperdb.dev/zipper"
)

// newTestSite builds the tree from spec §8 E6:
//
//	/test             (Site, root)
//	/test/about       (Page)
//	/test/news        (Folder)
//	/test/news/article-1..3 (Page)
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

	delta := zipper.Delta{rootKey: zipper.Value(root), newsKey: zipper.Value(news), aboutKey: zipper.Value(about)}
	tree.Attach(root, rootKey, news, newsKey)
	tree.Attach(root, rootKey, about, aboutKey)

	for _, name := range []string{"article-1", "article-2", "article-3"} {
		key, err := codec.NewKey(tree.PageName, name)
		require.NoError(t, err)
		page, err := tree.NewPage(reg, name, name, newsKey, "", name+" body")
		require.NoError(t, err)
		tree.Attach(news, newsKey, page, key)
		delta[key] = zipper.Value(page)
	}

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "seed site", 1, delta)
	}))

	return z, reg
}

func TestDescendantAxisAllPages(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `//Page`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"about", "article-1", "article-2", "article-3"}, query.Names(results))
}

func TestIntermediateDoubleSlashMatchesDescendants(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `/news//Page`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"article-1", "article-2", "article-3"}, query.Names(results))
}

func TestPrecedingSiblingAxis(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `/news/article-2/preceeding-sibling::*`)
	require.NoError(t, err)
	assert.Equal(t, []string{"article-1"}, query.Names(results))
}

func TestChildAxisKindTest(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `/Folder`)
	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, query.Names(results))
}

func TestNamePredicateMatchesChildByName(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `/news/article-1`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"article-1"}, query.Names(results))
}

func TestPositionalPredicate(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `/news/child::*[2]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"article-2"}, query.Names(results))
}

func TestUnionDeduplicates(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `//Page union //Page`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"about", "article-1", "article-2", "article-3"}, query.Names(results))
}

func TestArithmeticAndComparison(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `1 + 2 eq 3`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0])
}

func TestForExpression(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `for $p in //Page return name($p)`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"about", "article-1", "article-2", "article-3"}, results)
}

func TestQuantifiedSome(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestSite(t)

	results, err := query.Eval(ctx, z, reg, `some $p in //Page satisfies name($p) eq "article-2"`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0])
}

func TestSyntaxErrorReported(t *testing.T) {
	_, err := query.Compile(`/news/[`)
	assert.Error(t, err)
}
