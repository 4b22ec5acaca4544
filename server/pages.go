package server

import (
	"embed"
	"encoding/xml"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/youyeongjin90/kimsabu/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var workPageTmpl = template.Must(template.ParseFS(templateFS, "templates/work.html"))

var kst = time.FixedZone("KST", 9*60*60)

type workPage struct {
	Title     string
	Category  string
	Summary   string
	Date      string
	Thumbnail string
	// Content is rendered and sanitized.
	Content template.HTML
}

func koreanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(kst)
	return fmt.Sprintf("%d년 %d월 %d일", t.Year(), int(t.Month()), t.Day())
}

// thumbnailSrc returns a URL for w's thumbnail. Embedded images are
// served by the thumbnail endpoint.
func thumbnailSrc(w *store.WorkPost) string {
	switch {
	case w.Thumbnail == "":
		return ""
	case strings.HasPrefix(w.Thumbnail, "data:"):
		return "/api/thumbnails/" + w.ID
	default:
		return w.Thumbnail
	}
}

func (s *Server) workPage(c echo.Context) error {
	w, err := s.loadWork(c)
	if err != nil {
		return err
	}
	page := workPage{
		Title:     w.Title,
		Category:  w.Category.Label(),
		Summary:   w.Summary,
		Date:      koreanDate(w.CreatedAt),
		Thumbnail: thumbnailSrc(w),
		Content:   template.HTML(s.render(w.Content)),
	}

	var b strings.Builder
	if err := workPageTmpl.Execute(&b, page); err != nil {
		return err
	}
	return c.HTML(http.StatusOK, b.String())
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) sitemap(c echo.Context) error {
	works, err := s.works.List(c.Request().Context())
	if err != nil {
		return err
	}

	today := time.Now().UTC().Format(time.DateOnly)
	set := sitemapURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: s.siteURL, LastMod: today, ChangeFreq: "weekly", Priority: 1.0},
			{Loc: s.siteURL + "/works", LastMod: today, ChangeFreq: "daily", Priority: 0.9},
			{Loc: s.siteURL + "/contact", LastMod: today, ChangeFreq: "monthly", Priority: 0.8},
		},
	}
	for _, w := range works {
		u := sitemapURL{Loc: s.siteURL + "/works/" + w.ID, ChangeFreq: "monthly", Priority: 0.7}
		if !w.UpdatedAt.IsZero() {
			u.LastMod = w.UpdatedAt.UTC().Format(time.DateOnly)
		}
		set.URLs = append(set.URLs, u)
	}
	return c.XMLPretty(http.StatusOK, set, "  ")
}
