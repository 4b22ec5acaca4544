package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlog serves a post list, post pages and one image the way the blog
// platform does. Pages past the end repeat the last one.
type fakeBlog struct {
	pages     [][]string
	failPage  int
	posts     map[string]string
	image     []byte
	imageType string

	listHits atomic.Int32
	referers []string
}

func (b *fakeBlog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/PostList.naver":
		b.listHits.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("currentPage"))
		if page == b.failPage {
			http.NotFound(w, r)
			return
		}
		if len(b.pages) == 0 {
			fmt.Fprint(w, "<html><body>글이 없습니다</body></html>")
			return
		}
		if page > len(b.pages) {
			page = len(b.pages)
		}
		var sb strings.Builder
		for _, id := range b.pages[page-1] {
			fmt.Fprintf(&sb, `<a href="/PostView.naver?blogId=k_sabu&logNo=%s">%s</a>`, id, id)
		}
		fmt.Fprint(w, sb.String())
	case "/PostView.naver":
		page, ok := b.posts[r.URL.Query().Get("logNo")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	case "/img/thumb.jpg":
		b.referers = append(b.referers, r.Header.Get("Referer"))
		if r.Header.Get("Referer") == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if b.imageType == "" {
			w.Header()["Content-Type"] = nil
		} else {
			w.Header().Set("Content-Type", b.imageType)
		}
		w.Write(b.image)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, blog *fakeBlog) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(blog)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, RetryWait: time.Millisecond}), srv
}

func postPage(title, date, thumb, desc string) string {
	return `<html><head>
<meta property="og:title" content="` + title + `"/>
<meta property="og:image" content="` + thumb + `"/>
<meta property="og:description" content="` + desc + `"/>
</head><body>
<span class="se_publishDate">` + date + `</span>
<div class="se-main-container">
  <div class="se-component se-text"><p class="se-text-paragraph"><span>` + title + ` 본문</span></p></div>
  <div class="se-component se-image"><img data-lazy-src="https://blogfiles.pstatic.net/body.jpg?type=w773"/></div>
</div>
</body></html>`
}

func TestCollectLogNos_StopsOnRepeatedPage(t *testing.T) {
	blog := &fakeBlog{pages: [][]string{
		{"223000000001", "223000000002"},
		{"223000000002", "223000000003"},
	}}
	c, _ := newTestClient(t, blog)

	ids, err := c.CollectLogNos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"223000000001", "223000000002", "223000000003"}, ids)
	// Page 3 repeats page 2 and ends the walk.
	assert.Equal(t, int32(3), blog.listHits.Load())
}

func TestCollectLogNos_StopsOnEmptyPage(t *testing.T) {
	blog := &fakeBlog{}
	c, _ := newTestClient(t, blog)

	ids, err := c.CollectLogNos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, int32(1), blog.listHits.Load())
}

func TestCollectLogNos_Errors(t *testing.T) {
	blog := &fakeBlog{pages: [][]string{{"223000000001"}, {"223000000002"}}, failPage: 1}
	c, _ := newTestClient(t, blog)
	_, err := c.CollectLogNos(context.Background())
	assert.Error(t, err)

	// A failure after the first page keeps what was collected.
	blog = &fakeBlog{pages: [][]string{{"223000000001"}, {"223000000002"}}, failPage: 2}
	c, _ = newTestClient(t, blog)
	ids, err := c.CollectLogNos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"223000000001"}, ids)
}

func TestFetchPost(t *testing.T) {
	blog := &fakeBlog{posts: map[string]string{
		"223000000001": postPage("[시공사례] 현관 자동문", "2024. 5. 2.", "https://blogthumb.pstatic.net/t.jpg", "자동문 설치"),
		"223000000002": `<html><body>제목 없는 글</body></html>`,
	}}
	c, _ := newTestClient(t, blog)
	ctx := context.Background()

	post, err := c.FetchPost(ctx, "223000000001")
	require.NoError(t, err)
	assert.Equal(t, "현관 자동문", post.Title)
	assert.Equal(t, "자동문 설치", post.Summary)

	_, err = c.FetchPost(ctx, "223000000002")
	assert.ErrorIs(t, err, ErrNoTitle)

	_, err = c.FetchPost(ctx, "223000000009")
	assert.Error(t, err)
}

func TestFetchContent(t *testing.T) {
	blog := &fakeBlog{posts: map[string]string{
		"223000000001": postPage("데크", "", "", ""),
		"223000000002": `<div class="se-main-container"></div>`,
	}}
	c, _ := newTestClient(t, blog)

	doc, err := c.FetchContent(context.Background(), "223000000001")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "데크 본문", doc.Blocks[0].Text)

	_, err = c.FetchContent(context.Background(), "223000000002")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFetchImage(t *testing.T) {
	blog := &fakeBlog{image: bytes.Repeat([]byte{0xff}, 200), imageType: "image/webp; q=1"}
	c, srv := newTestClient(t, blog)
	ctx := context.Background()

	mimeType, data, err := c.FetchImage(ctx, srv.URL+"/img/thumb.jpg", "223000000001")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mimeType)
	assert.Len(t, data, 200)
	assert.Equal(t, []string{srv.URL + "/k_sabu/223000000001"}, blog.referers)

	blog.imageType = ""
	mimeType, _, err = c.FetchImage(ctx, srv.URL+"/img/thumb.jpg", "223000000001")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	url, err := c.FetchImageDataURL(ctx, srv.URL+"/img/thumb.jpg", "223000000001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

	blog.image = []byte("tiny")
	_, _, err = c.FetchImage(ctx, srv.URL+"/img/thumb.jpg", "223000000001")
	assert.ErrorIs(t, err, ErrSmallImage)
}
