package draft

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	hexColorRe   = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	decorationRe = regexp.MustCompile(`^(underline|line-through|underline line-through)$`)
	lengthsRe    = regexp.MustCompile(`^\d+(\.\d+)?(px|rem|em|%)?( \d+(\.\d+)?(px|rem|em|%)?)*$`)
	borderRe     = regexp.MustCompile(`^\d+px solid #[0-9a-fA-F]{6}$`)
	fontStyleRe  = regexp.MustCompile(`^(italic|normal)$`)
	listStyleRe  = regexp.MustCompile(`^(disc|decimal)$`)
)

// SanitizePolicy returns a UGC policy that keeps everything the renderer
// emits, including data URL images, and strips anything else.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowElements("figure")

	p.AllowStyles("color").Matching(hexColorRe).OnElements("span", "blockquote")
	p.AllowStyles("text-decoration").Matching(decorationRe).OnElements("span")
	p.AllowStyles("margin").Matching(lengthsRe).OnElements("figure", "blockquote")
	p.AllowStyles("text-align").Matching(bluemonday.CellAlign).OnElements("figure")
	p.AllowStyles("max-width", "border-radius").Matching(lengthsRe).OnElements("img")
	p.AllowStyles("border-left").Matching(borderRe).OnElements("blockquote")
	p.AllowStyles("padding-left").Matching(lengthsRe).OnElements("blockquote", "ul", "ol")
	p.AllowStyles("font-style").Matching(fontStyleRe).OnElements("blockquote")
	p.AllowStyles("list-style").Matching(listStyleRe).OnElements("ul", "ol")
	return p
}

var defaultPolicy = sync.OnceValue(SanitizePolicy)

// Sanitize passes rendered HTML through the shared SanitizePolicy.
func Sanitize(html string) string {
	return defaultPolicy().Sanitize(html)
}

// RenderSafe renders raw and sanitizes the result, ready for unescaped
// injection into a page.
func RenderSafe(raw string) string {
	return Sanitize(Render(raw))
}
