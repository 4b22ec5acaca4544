package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/youyeongjin90/kimsabu/draft"
	"github.com/youyeongjin90/kimsabu/store"
)

// Post is the metadata scraped from one blog post.
type Post struct {
	LogNo string
	Title string
	// CreatedAt is zero when the page carries no date.
	CreatedAt    time.Time
	ThumbnailURL string
	Summary      string
}

const (
	genericIntro  = "안녕하세요"
	summaryLength = 100
	imageSizeArg  = "?type=w966"
)

var (
	logNoParamRe = regexp.MustCompile(`logNo[=":\s]*["']?(\d{10,12})`)
	dateRe       = regexp.MustCompile(`(\d{4})\.\s*(\d{1,2})\.\s*(\d{1,2})`)
	postfilesRe  = regexp.MustCompile(`https?://postfiles\.pstatic\.net/[^"'\s<>)]+`)

	titlePrefixRes = []*regexp.Regexp{
		regexp.MustCompile(`^<[^>]+>\s*`),
		regexp.MustCompile(`^\[[^\]]+\]\s*`),
		regexp.MustCompile(`^【[^】]+】\s*`),
	}

	kst = time.FixedZone("KST", 9*60*60)
)

// ExtractLogNos returns the post ids linked from a list page, in order of
// first appearance.
func ExtractLogNos(page, blogID string) []string {
	pathRe := regexp.MustCompile(`/` + regexp.QuoteMeta(blogID) + `/(\d{10,12})`)

	var out []string
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{logNoParamRe, pathRe} {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

// CleanTitle strips a leading bracketed label such as "<시공사례>" or
// "[시공사례]".
func CleanTitle(title string) string {
	for _, re := range titlePrefixRes {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

var categoryKeywords = []struct {
	category store.WorkCategory
	keywords []string
}{
	{store.CategoryFence, []string{"휀스", "펜스", "fence", "울타리", "철망", "방음", "차단망", "그물망", "루버"}},
	{store.CategoryRailing, []string{"난간", "railing", "핸드레일", "계단난간", "발코니난간", "테라스난간", "옥상난간", "안전난간"}},
	{store.CategoryGate, []string{"대문", "게이트", "gate", "출입문", "현관문", "철문", "자동문", "셔터", "쪽문", "단조대문"}},
	{store.CategoryDeck, []string{"데크", "deck", "목재", "합성목재", "루프탑", "테라스", "마루", "wpc"}},
	{store.CategoryMetal, []string{"금속", "철재", "스테인리스", "알루미늄", "강철", "각관", "파이프", "구조물", "지붕", "계단", "보행교", "조형물", "캐노피", "차양"}},
}

// GuessCategory picks the first category with a keyword in title.
// Categories are tried in a fixed order, so "계단난간" is a railing.
func GuessCategory(title string) store.WorkCategory {
	text := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.category
			}
		}
	}
	return store.CategoryMetal
}

// metaProperties collects <meta property=... content=...> values.
func metaProperties(page string) map[string]string {
	out := map[string]string{}
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if atom.Lookup(name) != atom.Meta || !hasAttr {
			continue
		}
		var prop, content string
		for {
			key, val, more := z.TagAttr()
			switch string(key) {
			case "property":
				prop = string(val)
			case "content":
				content = string(val)
			}
			if !more {
				break
			}
		}
		if prop != "" {
			if _, dup := out[prop]; !dup {
				out[prop] = strings.TrimSpace(content)
			}
		}
	}
}

// ParsePost extracts post metadata from a post page. ok is false when the
// page has no usable title.
func ParsePost(logNo, page string) (post *Post, ok bool) {
	meta := metaProperties(page)
	title := CleanTitle(meta["og:title"])
	if title == "" {
		return nil, false
	}
	p := &Post{LogNo: logNo, Title: title, CreatedAt: parseDate(page)}

	if u := postfilesRe.FindString(page); u != "" {
		base, _, _ := strings.Cut(u, "?")
		p.ThumbnailURL = base + imageSizeArg
	} else {
		p.ThumbnailURL = meta["og:image"]
	}

	if desc := meta["og:description"]; !strings.HasPrefix(desc, genericIntro) {
		p.Summary = truncateRunes(desc, summaryLength)
	}
	return p, true
}

// parseDate finds the first "YYYY. M. D" date and returns midnight KST.
func parseDate(page string) time.Time {
	m := dateRe.FindStringSubmatch(page)
	if m == nil {
		return time.Time{}
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, kst)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}
	}
	return t
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool, out []*html.Node) []*html.Node {
	if match(n) {
		return append(out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = findAll(c, match, out)
	}
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// meaningful reports whether text has more than one visible character.
func meaningful(text string) bool {
	visible := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\u200b', '\u00a0':
			return -1
		}
		return r
	}, text)
	return utf8.RuneCountInString(visible) > 1
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// imageSource picks the full-size source of an se-image component.
func imageSource(component *html.Node) string {
	img := findFirst(component, func(n *html.Node) bool {
		return isElement(n, atom.Img) && attr(n, "data-lazy-src") != ""
	})
	if img != nil {
		src := attr(img, "data-lazy-src")
		if strings.Contains(src, "type=w966") {
			return src
		}
		base, _, _ := strings.Cut(src, "?")
		return base + imageSizeArg
	}
	img = findFirst(component, func(n *html.Node) bool {
		return isElement(n, atom.Img) && strings.HasPrefix(attr(n, "src"), "https://postfiles")
	})
	if img != nil {
		base, _, _ := strings.Cut(attr(img, "src"), "?")
		return base + imageSizeArg
	}
	return ""
}

// ParseContent converts the body of a post page into a document: one
// paragraph per meaningful text paragraph and one image block per image
// component, in page order. It returns nil when nothing was found.
func ParseContent(page string) *draft.Document {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}
	if main := findFirst(root, func(n *html.Node) bool {
		return isElement(n, atom.Div) && hasClass(n, "se-main-container")
	}); main != nil {
		root = main
	}

	components := findAll(root, func(n *html.Node) bool {
		return isElement(n, atom.Div) && hasClass(n, "se-component") &&
			(hasClass(n, "se-text") || hasClass(n, "se-image"))
	}, nil)

	doc := &draft.Document{EntityMap: map[draft.EntityKey]draft.Entity{}}
	nextKey := draft.EntityKey(0)
	blockKey := func() string { return "blk" + strconv.Itoa(len(doc.Blocks)) }

	for _, c := range components {
		if hasClass(c, "se-text") {
			paras := findAll(c, func(n *html.Node) bool {
				return isElement(n, atom.P) && hasClass(n, "se-text-paragraph")
			}, nil)
			for _, p := range paras {
				text := textContent(p)
				if !meaningful(text) {
					continue
				}
				doc.Blocks = append(doc.Blocks, draft.Block{Key: blockKey(), Text: text, Type: draft.Unstyled})
			}
			continue
		}

		src := imageSource(c)
		if src == "" {
			continue
		}
		key := nextKey
		nextKey++
		doc.EntityMap[key] = draft.NewImageEntity(src)
		doc.Blocks = append(doc.Blocks, draft.Block{
			Key:          blockKey(),
			Text:         " ",
			Type:         draft.Atomic,
			EntityRanges: []draft.EntityRange{{Offset: 0, Length: 1, Key: key}},
		})
	}

	if len(doc.Blocks) == 0 {
		return nil
	}
	return doc
}
