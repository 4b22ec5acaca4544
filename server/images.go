package server

import (
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/ingest"
)

// proxyHosts are the blog image hosts the proxy will fetch from.
var proxyHosts = []string{
	"postfiles.pstatic.net",
	"blogfiles.pstatic.net",
	"blogthumb.pstatic.net",
}

const (
	proxyUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36"
	proxyReferer   = "https://blog.naver.com/"
	proxyAccept    = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	maxProxyBytes  = 20 << 20
)

// imageProxy serves blog images, which refuse requests without a blog
// Referer, from the site's own origin.
func (s *Server) imageProxy(c echo.Context) error {
	raw := c.QueryParam("url")
	if raw == "" {
		return c.String(http.StatusBadRequest, "url parameter required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return c.String(http.StatusBadRequest, "invalid url")
	}
	if !slices.Contains(proxyHosts, u.Hostname()) {
		return c.String(http.StatusForbidden, "forbidden host")
	}

	req, err := retryablehttp.NewRequestWithContext(c.Request().Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid url")
	}
	req.Header.Set("User-Agent", proxyUserAgent)
	req.Header.Set("Referer", proxyReferer)
	req.Header.Set("Accept", proxyAccept)

	resp, err := s.proxy.Do(req)
	if err != nil {
		s.log.Warn("image proxy fetch", zap.String("url", raw), zap.Error(err))
		return c.String(http.StatusBadGateway, "fetch failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.String(resp.StatusCode, "upstream error")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBytes))
	if err != nil {
		return c.String(http.StatusBadGateway, "fetch failed")
	}
	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.Response().Header().Set(echo.HeaderCacheControl, imageCacheControl)
	return c.Blob(http.StatusOK, contentType, body)
}

// uploadImage compresses a multipart "image" file and returns a source
// for it. ?kind=thumbnail keeps the larger thumbnail size.
func (s *Server) uploadImage(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	svc := ingest.Service{Compressor: ingest.EditorImage, Uploader: s.uploader}
	if c.QueryParam("kind") == "thumbnail" {
		svc.Compressor = ingest.Thumbnail
	}
	src, err := svc.Source(c.Request().Context(), f)
	if err != nil {
		s.log.Warn("image upload", zap.String("file", fh.Filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "이미지를 처리할 수 없습니다.")
	}
	return c.JSON(http.StatusOK, map[string]string{"src": src})
}
