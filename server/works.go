package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
	"github.com/youyeongjin90/kimsabu/ingest"
	"github.com/youyeongjin90/kimsabu/store"
)

const (
	listCacheControl  = "public, max-age=600"
	imageCacheControl = "public, max-age=86400, stale-while-revalidate=604800"
)

// workResponse is a work with its content rendered for display.
type workResponse struct {
	*store.WorkPost
	HTML string `json:"html"`
}

// workRequest is the admin form for creating or replacing a work.
type workRequest struct {
	Title     string     `json:"title" validate:"required"`
	Category  string     `json:"category" validate:"required,category"`
	Summary   string     `json:"summary"`
	Content   string     `json:"content"`
	Thumbnail string     `json:"thumbnail"`
	CreatedAt *time.Time `json:"created_at"`
}

func (s *Server) listWorks(c echo.Context) error {
	works, err := s.works.List(c.Request().Context())
	if err != nil {
		s.log.Error("list works", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, []store.WorkSummary{})
	}

	if cat := c.QueryParam("category"); cat != "" && cat != "all" {
		if !store.WorkCategory(cat).Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
		filtered := make([]store.WorkSummary, 0, len(works))
		for _, w := range works {
			if w.Category == store.WorkCategory(cat) {
				filtered = append(filtered, w)
			}
		}
		works = filtered
	}

	c.Response().Header().Set(echo.HeaderCacheControl, listCacheControl)
	return c.JSON(http.StatusOK, works)
}

// loadWork fetches a work, turning a missing one into a 404.
func (s *Server) loadWork(c echo.Context) (*store.WorkPost, error) {
	w, err := s.works.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, msgWorkNotFound)
	}
	return w, err
}

func (s *Server) render(content string) string {
	html := draft.RenderSafe(content)
	s.metrics.rendered(content, html)
	return html
}

func (s *Server) getWork(c echo.Context) error {
	w, err := s.loadWork(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workResponse{WorkPost: w, HTML: s.render(w.Content)})
}

func (s *Server) getThumbnail(c echo.Context) error {
	w, err := s.loadWork(c)
	if err != nil {
		return err
	}
	if w.Thumbnail == "" {
		return c.NoContent(http.StatusNotFound)
	}
	mime, data, err := ingest.DecodeDataURL(w.Thumbnail)
	if err != nil || !strings.HasPrefix(mime, "image/") {
		return c.NoContent(http.StatusBadRequest)
	}
	c.Response().Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
	c.Response().Header().Set(echo.HeaderCacheControl, imageCacheControl)
	return c.Blob(http.StatusOK, mime, data)
}

func (r *workRequest) validate(c echo.Context) error {
	if err := c.Bind(r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}
	r.Title = strings.TrimSpace(r.Title)
	if err := c.Validate(r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	}
	if r.Content != "" {
		if _, err := draft.Parse(r.Content); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid content")
		}
	}
	return nil
}

func (r *workRequest) apply(w *store.WorkPost) {
	w.Title = r.Title
	w.Category = store.WorkCategory(r.Category)
	w.Summary = r.Summary
	w.Content = r.Content
	w.Thumbnail = r.Thumbnail
	if r.CreatedAt != nil {
		w.CreatedAt = *r.CreatedAt
	}
}

func (s *Server) createWork(c echo.Context) error {
	var req workRequest
	if err := req.validate(c); err != nil {
		return err
	}
	w := &store.WorkPost{}
	req.apply(w)
	if err := s.works.Upsert(c.Request().Context(), w); err != nil {
		s.log.Error("create work", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, msgSaveFailed)
	}
	return c.JSON(http.StatusCreated, w)
}

func (s *Server) updateWork(c echo.Context) error {
	w, err := s.loadWork(c)
	if err != nil {
		return err
	}
	var req workRequest
	if err := req.validate(c); err != nil {
		return err
	}
	req.apply(w)
	if err := s.works.Upsert(c.Request().Context(), w); err != nil {
		s.log.Error("update work", zap.String("id", w.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, msgSaveFailed)
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) deleteWork(c echo.Context) error {
	err := s.works.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msgWorkNotFound)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// revalidate drops cached reads so edits show up immediately.
func (s *Server) revalidate(c echo.Context) error {
	if inv, ok := s.works.(invalidator); ok {
		inv.Invalidate()
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
