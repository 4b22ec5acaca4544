package draft

import (
	"strings"
	"unicode/utf16"
)

const (
	figureOpen      = `<figure style="margin:12px 0;text-align:center;">`
	figureClose     = `</figure>`
	imageStyle      = `max-width:100%;border-radius:8px;`
	blockquoteStyle = `border-left:4px solid #f97316;padding-left:1rem;color:#6b7280;font-style:italic;margin:8px 0;`
	ulOpen          = `<ul style="list-style:disc;padding-left:1.5rem;">`
	olOpen          = `<ol style="list-style:decimal;padding-left:1.5rem;">`
	emptyParagraph  = `<p><br /></p>`
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

type listKind int

const (
	listNone listKind = iota
	listUnordered
	listOrdered
)

func listKindOf(t BlockType) listKind {
	switch t {
	case UnorderedListItem:
		return listUnordered
	case OrderedListItem:
		return listOrdered
	}
	return listNone
}

func (k listKind) open() string {
	if k == listOrdered {
		return olOpen
	}
	return ulOpen
}

func (k listKind) close() string {
	if k == listOrdered {
		return "</ol>"
	}
	return "</ul>"
}

// Render converts a stored document string into an HTML fragment. Input
// that does not parse as a document yields "".
func Render(raw string) string {
	doc, err := Parse(raw)
	if err != nil {
		return ""
	}
	return RenderDocument(doc)
}

// RenderDocument converts d into an HTML fragment. It is a pure function
// of d and safe for concurrent use.
func RenderDocument(d *Document) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	open := listNone
	for i := range d.Blocks {
		blk := &d.Blocks[i]
		kind := listKindOf(blk.Type)
		if open != kind && open != listNone {
			b.WriteString(open.close())
			open = listNone
		}
		if kind != listNone && open == listNone {
			b.WriteString(kind.open())
			open = kind
		}
		if blk.Type == Atomic {
			renderAtomic(&b, blk, d.EntityMap)
			continue
		}
		renderText(&b, blk)
	}
	if open != listNone {
		b.WriteString(open.close())
	}
	return b.String()
}

func renderAtomic(b *strings.Builder, blk *Block, entities map[EntityKey]Entity) {
	if len(blk.EntityRanges) == 0 {
		return
	}
	e, ok := entities[blk.EntityRanges[0].Key]
	if !ok || e.Type != EntityImage {
		return
	}
	b.WriteString(figureOpen)
	b.WriteString(`<img src="`)
	b.WriteString(attrEscaper.Replace(e.Data.Src))
	b.WriteString(`" style="` + imageStyle + `" />`)
	b.WriteString(figureClose)
}

// styleSet is the set of styles active on one code unit. Only one color
// survives; a later range in range order replaces an earlier one.
type styleSet struct {
	bold, italic, underline, strike bool
	color                           string
}

func (s *styleSet) add(style Style) {
	switch style {
	case Bold:
		s.bold = true
	case Italic:
		s.italic = true
	case Underline:
		s.underline = true
	case Strikethrough:
		s.strike = true
	default:
		if c, ok := style.Color(); ok {
			s.color = c
		}
	}
}

type segment struct {
	text   []uint16
	styles styleSet
}

// segments overlays the block's style ranges onto its code units and
// merges runs sharing an identical style set.
func segments(blk *Block) []segment {
	units := utf16.Encode([]rune(blk.Text))
	if len(units) == 0 {
		return nil
	}
	sets := make([]styleSet, len(units))
	for _, r := range blk.InlineStyleRanges {
		if r.Length <= 0 || !r.Style.Known() {
			continue
		}
		start, end := clampRange(r.Offset, r.Length, len(units))
		for i := start; i < end; i++ {
			sets[i].add(r.Style)
		}
	}

	var out []segment
	for i := 0; i < len(units); {
		j := i + 1
		for j < len(units) && sets[j] == sets[i] {
			j++
		}
		out = append(out, segment{text: units[i:j], styles: sets[i]})
		i = j
	}
	return out
}

func renderSegment(b *strings.Builder, seg segment) {
	content := textEscaper.Replace(string(utf16.Decode(seg.text)))
	if seg.styles.italic {
		content = "<em>" + content + "</em>"
	}
	if seg.styles.bold {
		content = "<strong>" + content + "</strong>"
	}

	var css []string
	switch {
	case seg.styles.underline && seg.styles.strike:
		css = append(css, "text-decoration:underline line-through")
	case seg.styles.underline:
		css = append(css, "text-decoration:underline")
	case seg.styles.strike:
		css = append(css, "text-decoration:line-through")
	}
	if seg.styles.color != "" {
		css = append(css, "color:#"+seg.styles.color)
	}
	if len(css) > 0 {
		content = `<span style="` + strings.Join(css, ";") + `">` + content + "</span>"
	}
	b.WriteString(content)
}

func renderText(b *strings.Builder, blk *Block) {
	typ := blk.Type
	if !typ.Known() {
		typ = Unstyled
	}
	segs := segments(blk)
	if len(segs) == 0 {
		if typ == Unstyled {
			b.WriteString(emptyParagraph)
		}
		return
	}

	var openTag, closeTag string
	switch typ {
	case HeaderOne:
		openTag, closeTag = "<h1>", "</h1>"
	case HeaderTwo:
		openTag, closeTag = "<h2>", "</h2>"
	case HeaderThree:
		openTag, closeTag = "<h3>", "</h3>"
	case Blockquote:
		openTag, closeTag = `<blockquote style="`+blockquoteStyle+`">`, "</blockquote>"
	case UnorderedListItem, OrderedListItem:
		openTag, closeTag = "<li>", "</li>"
	default:
		openTag, closeTag = "<p>", "</p>"
	}
	b.WriteString(openTag)
	for _, seg := range segs {
		renderSegment(b, seg)
	}
	b.WriteString(closeTag)
}
