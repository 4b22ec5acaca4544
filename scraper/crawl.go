package scraper

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
	"github.com/youyeongjin90/kimsabu/ingest"
)

// MaxListPages bounds how far CollectLogNos pages through the post list.
const MaxListPages = 50

// minImageSize filters out tracking pixels and error placeholders.
const minImageSize = 100

var (
	ErrNoTitle    = errors.New("post has no title")
	ErrNoContent  = errors.New("post has no content")
	ErrSmallImage = errors.New("image too small")
)

// CollectLogNos pages through the blog's post list and returns every post
// id, in order of first appearance. Paging stops at an empty page or at a
// page whose ids were all on the previous one, which is what the list
// returns past its end.
func (c *Client) CollectLogNos(ctx context.Context) ([]string, error) {
	var all []string
	seen := map[string]bool{}
	var prev map[string]bool

	for page := 1; page <= MaxListPages; page++ {
		body, err := c.getHTML(ctx, c.listURL(page), c.baseURL+"/")
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("stopping post list", zap.Int("page", page), zap.Error(err))
			break
		}

		ids := ExtractLogNos(body, c.blogID)
		c.log.Debug("post list page", zap.Int("page", page), zap.Int("found", len(ids)))
		if len(ids) == 0 {
			break
		}
		if page > 1 && allSeen(ids, prev) {
			c.log.Debug("reached last page", zap.Int("page", page))
			break
		}

		prev = make(map[string]bool, len(ids))
		for _, id := range ids {
			prev[id] = true
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}
	return all, nil
}

func allSeen(ids []string, prev map[string]bool) bool {
	for _, id := range ids {
		if !prev[id] {
			return false
		}
	}
	return true
}

func (c *Client) fetchPostPage(ctx context.Context, logNo string) (string, error) {
	return c.getHTML(ctx, c.postURL(logNo), c.baseURL+"/"+c.blogID)
}

// FetchPost loads a post page and extracts its metadata.
func (c *Client) FetchPost(ctx context.Context, logNo string) (*Post, error) {
	page, err := c.fetchPostPage(ctx, logNo)
	if err != nil {
		return nil, err
	}
	post, ok := ParsePost(logNo, page)
	if !ok {
		return nil, fmt.Errorf("post %s: %w", logNo, ErrNoTitle)
	}
	return post, nil
}

// FetchContent loads a post page and converts its body to a document.
func (c *Client) FetchContent(ctx context.Context, logNo string) (*draft.Document, error) {
	page, err := c.fetchPostPage(ctx, logNo)
	if err != nil {
		return nil, err
	}
	doc := ParseContent(page)
	if doc == nil {
		return nil, fmt.Errorf("post %s: %w", logNo, ErrNoContent)
	}
	return doc, nil
}

// FetchImage downloads an image of post logNo, sending the post as
// Referer since the image host rejects requests without one.
func (c *Client) FetchImage(ctx context.Context, imageURL, logNo string) (mimeType string, data []byte, err error) {
	data, header, err := c.get(ctx, imageURL, c.postReferer(logNo), acceptImage)
	if err != nil {
		return "", nil, err
	}
	if len(data) < minImageSize {
		return "", nil, fmt.Errorf("%s: %w (%d bytes)", imageURL, ErrSmallImage, len(data))
	}
	mimeType = "image/jpeg"
	if ct := header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		} else {
			mimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		}
	}
	return mimeType, data, nil
}

// FetchImageDataURL downloads an image and embeds it as a data URL.
func (c *Client) FetchImageDataURL(ctx context.Context, imageURL, logNo string) (string, error) {
	mimeType, data, err := c.FetchImage(ctx, imageURL, logNo)
	if err != nil {
		return "", err
	}
	return ingest.BytesToDataURL(mimeType, data), nil
}
