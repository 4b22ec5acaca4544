package scraper

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
	"github.com/youyeongjin90/kimsabu/store"
)

var importNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newImportFixture(t *testing.T, pages [][]string) (*Importer, *fakeBlog, *store.MemoryStore, *int) {
	t.Helper()
	blog := &fakeBlog{pages: pages, posts: map[string]string{}, image: bytes.Repeat([]byte{0x89}, 300), imageType: "image/png"}
	c, srv := newTestClient(t, blog)
	thumb := srv.URL + "/img/thumb.jpg"
	blog.posts["223000000001"] = postPage("&lt;시공사례&gt; 전원주택 휀스", "2024. 3. 15.", thumb, "휀스 시공 사례입니다.")
	blog.posts["223000000002"] = postPage("합성목재 데크", "", thumb, "안녕하세요 김사부입니다.")
	blog.posts["223000000004"] = postPage("난간 교체", "2023. 1. 9.", "", "")
	blog.posts["223000000005"] = postPage("대문 제작", "2023. 1. 8.", "", "")

	works := store.NewMemoryStore()
	revalidated := 0
	im := &Importer{
		Client: c,
		Works:  works,
		Log:    zap.NewNop(),
		Revalidate: func(context.Context) error {
			revalidated++
			return nil
		},
		now: func() time.Time { return importNow },
	}
	return im, blog, works, &revalidated
}

func TestImporter_Crawl(t *testing.T) {
	im, _, works, revalidated := newImportFixture(t, [][]string{{"223000000001", "223000000002"}, {"223000000003"}})
	ctx := context.Background()

	fenceID := LogNoToID(DefaultBlogID, "223000000001")
	require.NoError(t, works.Upsert(ctx, &store.WorkPost{ID: fenceID, Title: "old", Content: "kept"}))

	r, err := im.Crawl(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Found)
	assert.Equal(t, 2, r.Imported)
	assert.Equal(t, 1, r.Skipped)
	assert.Error(t, r.Err)
	assert.Equal(t, map[store.WorkCategory]int{store.CategoryFence: 1, store.CategoryDeck: 1}, r.ByCategory)
	assert.Equal(t, 1, *revalidated)

	fence, err := works.Get(ctx, fenceID)
	require.NoError(t, err)
	assert.Equal(t, "전원주택 휀스", fence.Title)
	assert.Equal(t, store.CategoryFence, fence.Category)
	assert.Equal(t, "휀스 시공 사례입니다.", fence.Summary)
	assert.Equal(t, "kept", fence.Content)
	assert.True(t, strings.HasPrefix(fence.Thumbnail, "data:image/png;base64,"))
	assert.Equal(t, "2024-03-14T15:00:00Z", fence.CreatedAt.UTC().Format(time.RFC3339))

	deck, err := works.Get(ctx, LogNoToID(DefaultBlogID, "223000000002"))
	require.NoError(t, err)
	assert.Empty(t, deck.Summary)
	assert.Empty(t, deck.Content)
	assert.True(t, deck.CreatedAt.Equal(importNow))
}

func TestImporter_CrawlIsIdempotent(t *testing.T) {
	im, _, works, _ := newImportFixture(t, [][]string{{"223000000001"}})
	ctx := context.Background()

	_, err := im.Crawl(ctx)
	require.NoError(t, err)
	_, err = im.Crawl(ctx)
	require.NoError(t, err)

	list, err := works.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestImporter_TestModeLimit(t *testing.T) {
	im, _, works, _ := newImportFixture(t, [][]string{{"223000000001", "223000000002", "223000000004", "223000000005"}})
	im.Test = true

	r, err := im.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, r.Found)
	assert.Equal(t, 3, r.Imported+r.Skipped)

	list, err := works.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestImporter_UpdateContent(t *testing.T) {
	im, _, works, revalidated := newImportFixture(t, [][]string{{"223000000001", "223000000002"}})
	ctx := context.Background()

	// Nothing crawled yet: every update misses.
	r, err := im.UpdateContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Imported)
	assert.Equal(t, 2, r.Skipped)
	assert.ErrorIs(t, r.Err, store.ErrNotFound)

	_, err = im.Crawl(ctx)
	require.NoError(t, err)
	r, err = im.UpdateContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Imported)
	assert.NoError(t, r.Err)
	assert.Equal(t, 3, *revalidated)

	w, err := works.Get(ctx, LogNoToID(DefaultBlogID, "223000000002"))
	require.NoError(t, err)
	html := draft.Render(w.Content)
	assert.Contains(t, html, "<p>합성목재 데크 본문</p>")
	assert.Contains(t, html, `src="https://blogfiles.pstatic.net/body.jpg?type=w966"`)
}

func TestImporter_StopsOnCancel(t *testing.T) {
	im, _, works, _ := newImportFixture(t, [][]string{{"223000000001", "223000000002"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Crawl(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	list, err := works.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
