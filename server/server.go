// Package server exposes the site over HTTP: the public works catalog and
// contact form, the admin API, and the live editing WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/config"
	"github.com/youyeongjin90/kimsabu/ingest"
	"github.com/youyeongjin90/kimsabu/store"
)

// User-facing error messages.
const (
	msgMissingFields = "필수 항목이 누락되었습니다."
	msgSaveFailed    = "저장 중 오류가 발생했습니다."
	msgWorkNotFound  = "시공사례를 찾을 수 없습니다."
	msgServerError   = "서버 오류가 발생했습니다."
)

type Options struct {
	Works     store.WorkStore
	Inquiries store.InquiryStore
	// Uploader receives uploaded images. Without one, images are
	// returned as data URLs.
	Uploader ingest.Uploader
	Log      *zap.Logger
	// SiteURL prefixes absolute links in the sitemap.
	SiteURL string
	// Registry collects the server's metrics. Defaults to a new registry.
	Registry *prometheus.Registry
	// ProxyTransport carries image proxy requests. Defaults to the
	// retrying client's own transport.
	ProxyTransport http.RoundTripper
}

// invalidator is implemented by stores that cache reads.
type invalidator interface {
	Invalidate()
}

type Server struct {
	e         *echo.Echo
	works     store.WorkStore
	inquiries store.InquiryStore
	uploader  ingest.Uploader
	log       *zap.Logger
	siteURL   string
	metrics   *metrics
	hub       *Hub
	proxy     *retryablehttp.Client
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.SiteURL == "" {
		opts.SiteURL = config.DefaultSiteURL
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		works:     opts.Works,
		inquiries: opts.Inquiries,
		uploader:  opts.Uploader,
		log:       opts.Log,
		siteURL:   strings.TrimRight(opts.SiteURL, "/"),
		metrics:   newMetrics(reg),
		proxy:     newProxyClient(opts.ProxyTransport),
	}
	s.hub = NewHub(opts.Works, opts.Log, s.metrics)
	go s.hub.Run()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Validator = NewRequestValidator()

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(middleware.BodyLimit("12M"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  "http",
		Registerer: reg,
	}))

	api := e.Group("/api")
	api.GET("/works", s.listWorks)
	api.GET("/works/:id", s.getWork)
	api.GET("/thumbnails/:id", s.getThumbnail)
	api.GET("/img-proxy", s.imageProxy)
	api.POST("/contact", s.createInquiry)

	// Admin routes. Access control is left to the deployment.
	api.POST("/works", s.createWork)
	api.PUT("/works/:id", s.updateWork)
	api.DELETE("/works/:id", s.deleteWork)
	api.POST("/images", s.uploadImage)
	api.POST("/revalidate", s.revalidate)
	api.GET("/inquiries", s.listInquiries)

	e.GET("/works/:id", s.workPage)
	e.GET("/sitemap.xml", s.sitemap)
	e.GET("/ws", s.serveWS)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))

	s.e = e
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("starting server", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends every editing session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.e.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := msgServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		s.log.Warn("write error response", zap.Error(err))
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	log := s.log.Named("http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}

func newProxyClient(transport http.RoundTripper) *retryablehttp.Client {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 1
	cl.RetryWaitMin = 200 * time.Millisecond
	cl.RetryWaitMax = time.Second
	cl.HTTPClient.Timeout = 15 * time.Second
	if transport != nil {
		cl.HTTPClient.Transport = transport
	}
	// Failures are reported per request by the handler.
	cl.Logger = nil
	cl.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return cl
}
