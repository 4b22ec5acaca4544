package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
	"github.com/youyeongjin90/kimsabu/ingest"
	"github.com/youyeongjin90/kimsabu/store"
)

// testLimit is the number of posts processed in test mode.
const testLimit = 3

// Importer copies blog posts into a WorkStore. Both jobs are sequential
// and best effort: a failing post is logged, recorded in the report and
// skipped.
type Importer struct {
	Client *Client
	Works  store.WorkStore
	// Images recompresses thumbnails before they are stored. When nil the
	// downloaded bytes are embedded as they are.
	Images *ingest.Service
	Log    *zap.Logger
	// Test limits a run to the first few posts.
	Test bool
	// Revalidate is called once at the end of a run, e.g. to drop the
	// site's list cache.
	Revalidate func(ctx context.Context) error

	now func() time.Time
}

// Report summarizes an import run.
type Report struct {
	Found      int
	Imported   int
	Skipped    int
	ByCategory map[store.WorkCategory]int
	// Err joins every per-post failure.
	Err error
}

func newReport() *Report {
	return &Report{ByCategory: map[store.WorkCategory]int{}}
}

func (r *Report) skip(err error) {
	r.Skipped++
	r.Err = multierr.Append(r.Err, err)
}

func (im *Importer) logger() *zap.Logger {
	if im.Log == nil {
		return zap.NewNop()
	}
	return im.Log
}

func (im *Importer) clock() time.Time {
	if im.now != nil {
		return im.now()
	}
	return time.Now()
}

// logNos collects the post ids to process. The returned error is only
// set when the list could not be read at all.
func (im *Importer) logNos(ctx context.Context, r *Report) ([]string, error) {
	ids, err := im.Client.CollectLogNos(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect posts: %w", err)
	}
	r.Found = len(ids)
	im.logger().Info("collected posts", zap.Int("count", len(ids)))
	if im.Test && len(ids) > testLimit {
		ids = ids[:testLimit]
	}
	return ids, nil
}

// Crawl imports the metadata of every post: title, date, category,
// summary and thumbnail. Content already stored for a post is kept.
func (im *Importer) Crawl(ctx context.Context) (*Report, error) {
	r := newReport()
	ids, err := im.logNos(ctx, r)
	if err != nil {
		return r, err
	}

	for i, logNo := range ids {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		log := im.logger().With(zap.String("log_no", logNo), zap.Int("n", i+1), zap.Int("of", len(ids)))

		w, err := im.crawlOne(ctx, logNo, log)
		if err != nil {
			log.Warn("skipped post", zap.Error(err))
			r.skip(err)
			continue
		}
		r.Imported++
		r.ByCategory[w.Category]++
		log.Info("imported post", zap.String("id", w.ID), zap.String("title", w.Title), zap.String("category", string(w.Category)))
	}

	im.revalidate(ctx)
	return r, nil
}

func (im *Importer) crawlOne(ctx context.Context, logNo string, log *zap.Logger) (*store.WorkPost, error) {
	post, err := im.Client.FetchPost(ctx, logNo)
	if err != nil {
		return nil, err
	}

	id := LogNoToID(im.Client.BlogID(), logNo)
	w := &store.WorkPost{
		ID:        id,
		Title:     post.Title,
		Category:  GuessCategory(post.Title),
		Summary:   post.Summary,
		CreatedAt: post.CreatedAt,
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = im.clock()
	}

	existing, err := im.Works.Get(ctx, id)
	switch {
	case err == nil:
		w.Content = existing.Content
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("post %s: %w", logNo, err)
	}

	if post.ThumbnailURL != "" {
		thumb, err := im.thumbnail(ctx, post.ThumbnailURL, logNo)
		if err != nil {
			log.Warn("thumbnail unavailable", zap.String("url", post.ThumbnailURL), zap.Error(err))
		}
		w.Thumbnail = thumb
	}

	if err := im.Works.Upsert(ctx, w); err != nil {
		return nil, fmt.Errorf("post %s: save: %w", logNo, err)
	}
	return w, nil
}

func (im *Importer) thumbnail(ctx context.Context, url, logNo string) (string, error) {
	mimeType, data, err := im.Client.FetchImage(ctx, url, logNo)
	if err != nil {
		return "", err
	}
	if im.Images == nil {
		return ingest.BytesToDataURL(mimeType, data), nil
	}
	return im.Images.Source(ctx, bytes.NewReader(data))
}

// UpdateContent replaces the content of every imported post with the
// document parsed from its page. Posts that were never crawled are
// skipped.
func (im *Importer) UpdateContent(ctx context.Context) (*Report, error) {
	r := newReport()
	ids, err := im.logNos(ctx, r)
	if err != nil {
		return r, err
	}

	for i, logNo := range ids {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		log := im.logger().With(zap.String("log_no", logNo), zap.Int("n", i+1), zap.Int("of", len(ids)))

		doc, err := im.Client.FetchContent(ctx, logNo)
		if err != nil {
			log.Warn("skipped post", zap.Error(err))
			r.skip(err)
			continue
		}

		id := LogNoToID(im.Client.BlogID(), logNo)
		if err := im.Works.UpdateContent(ctx, id, draft.Serialize(doc)); err != nil {
			err = fmt.Errorf("post %s: save: %w", logNo, err)
			log.Warn("skipped post", zap.Error(err))
			r.skip(err)
			continue
		}

		text, images := countBlocks(doc)
		r.Imported++
		log.Info("updated content", zap.String("id", id), zap.Int("text_blocks", text), zap.Int("images", images))
	}

	im.revalidate(ctx)
	return r, nil
}

func countBlocks(doc *draft.Document) (text, images int) {
	for _, b := range doc.Blocks {
		if b.Type == draft.Atomic {
			images++
		} else {
			text++
		}
	}
	return text, images
}

func (im *Importer) revalidate(ctx context.Context) {
	if im.Revalidate == nil {
		return
	}
	if err := im.Revalidate(ctx); err != nil {
		im.logger().Warn("revalidate failed", zap.Error(err))
	}
}
