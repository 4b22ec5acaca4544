// Package scraper imports case studies from the company's blog into the
// work store. It is run as a batch job, never from a request path.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBlogID  = "k_sabu"
	DefaultBaseURL = "https://blog.naver.com"

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8"
	acceptHTML     = "text/html,application/xhtml+xml,*/*;q=0.9"
	acceptImage    = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

type ClientConfig struct {
	BlogID  string
	BaseURL string
	// Interval is the minimum spacing between requests.
	Interval time.Duration
	// RetryWait is multiplied by the attempt number between retries.
	RetryWait time.Duration
	Log       *zap.Logger
}

// Client fetches blog pages with browser-like headers, retrying failed
// requests and pacing all of them through one limiter.
type Client struct {
	http    *retryablehttp.Client
	limiter *rate.Limiter
	blogID  string
	baseURL string
	log     *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BlogID == "" {
		cfg.BlogID = DefaultBlogID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	cl := retryablehttp.NewClient()
	cl.RetryMax = 2
	cl.Logger = leveledLogger{cfg.Log.Sugar()}
	cl.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return time.Duration(attempt+1) * cfg.RetryWait
	}
	cl.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Client{
		http:    cl,
		limiter: rate.NewLimiter(limit, 1),
		blogID:  cfg.BlogID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     cfg.Log,
	}
}

func (c *Client) BlogID() string { return c.blogID }

func (c *Client) listURL(page int) string {
	q := url.Values{
		"blogId":       {c.blogID},
		"currentPage":  {fmt.Sprint(page)},
		"postListType": {"blogId"},
		"blogType":     {"post"},
		"categoryNo":   {"0"},
	}
	return c.baseURL + "/PostList.naver?" + q.Encode()
}

func (c *Client) postURL(logNo string) string {
	q := url.Values{"blogId": {c.blogID}, "logNo": {logNo}, "redirect": {"Dlog"}}
	return c.baseURL + "/PostView.naver?" + q.Encode()
}

// postReferer is the page a browser would have come from when loading
// the post's images.
func (c *Client) postReferer(logNo string) string {
	return c.baseURL + "/" + c.blogID + "/" + logNo
}

// get fetches target and returns its body. Non-2xx responses are errors.
func (c *Client) get(ctx context.Context, target, referer, accept string) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept", accept)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("get %s: HTTP %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", target, err)
	}
	return body, resp.Header, nil
}

func (c *Client) getHTML(ctx context.Context, target, referer string) (string, error) {
	b, _, err := c.get(ctx, target, referer, acceptHTML)
	return string(b), err
}

// leveledLogger adapts zap to retryablehttp's logger interface.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
