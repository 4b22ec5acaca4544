package draft

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"

	"go.uber.org/multierr"
)

// BlockType identifies the structural role of a block.
type BlockType string

const (
	Unstyled          BlockType = "unstyled"
	HeaderOne         BlockType = "header-one"
	HeaderTwo         BlockType = "header-two"
	HeaderThree       BlockType = "header-three"
	UnorderedListItem BlockType = "unordered-list-item"
	OrderedListItem   BlockType = "ordered-list-item"
	Blockquote        BlockType = "blockquote"
	Atomic            BlockType = "atomic"
)

// Known reports whether t is one of the enumerated block types.
func (t BlockType) Known() bool {
	switch t {
	case Unstyled, HeaderOne, HeaderTwo, HeaderThree,
		UnorderedListItem, OrderedListItem, Blockquote, Atomic:
		return true
	}
	return false
}

// IsList reports whether t is a list item type.
func (t BlockType) IsList() bool {
	return t == UnorderedListItem || t == OrderedListItem
}

// Style is an inline style tag such as "BOLD" or "COLOR_EF4444".
type Style string

const (
	Bold          Style = "BOLD"
	Italic        Style = "ITALIC"
	Underline     Style = "UNDERLINE"
	Strikethrough Style = "STRIKETHROUGH"

	colorPrefix = "COLOR_"
)

var colorStyleRe = regexp.MustCompile(`^COLOR_[0-9A-Fa-f]{6}$`)

// PresetColors are the colors offered by the editor toolbar.
var PresetColors = []string{
	"#111111", "#EF4444", "#F97316", "#EAB308", "#22C55E",
	"#3B82F6", "#8B5CF6", "#EC4899", "#6B7280",
}

// ColorStyle builds the color style tag for a hex color given as
// "#RRGGBB" or "RRGGBB". It returns "" for anything else.
func ColorStyle(hex string) Style {
	s := Style(colorPrefix + strings.TrimPrefix(hex, "#"))
	if !s.IsColor() {
		return ""
	}
	return s
}

// ParseStyle recognizes a style tag. Color tags are normalized to upper
// case hex digits.
func ParseStyle(s string) (Style, bool) {
	st := Style(s)
	switch st {
	case Bold, Italic, Underline, Strikethrough:
		return st, true
	}
	if st.IsColor() {
		return Style(colorPrefix + strings.ToUpper(strings.TrimPrefix(s, colorPrefix))), true
	}
	return "", false
}

// IsColor reports whether s is a well-formed color tag.
func (s Style) IsColor() bool {
	return colorStyleRe.MatchString(string(s))
}

// Color returns the hex digits of a color tag, without the leading '#'.
func (s Style) Color() (string, bool) {
	if !s.IsColor() {
		return "", false
	}
	return strings.TrimPrefix(string(s), colorPrefix), true
}

// Known reports whether the renderer understands s.
func (s Style) Known() bool {
	switch s {
	case Bold, Italic, Underline, Strikethrough:
		return true
	}
	return s.IsColor()
}

// StyleRange tags [Offset, Offset+Length) of a block's text with a style.
// Offsets count UTF-16 code units.
type StyleRange struct {
	Offset int   `json:"offset"`
	Length int   `json:"length"`
	Style  Style `json:"style"`
}

// EntityRange points a span of a block's text at an entity.
type EntityRange struct {
	Offset int       `json:"offset"`
	Length int       `json:"length"`
	Key    EntityKey `json:"key"`
}

// Block is one structural unit of content.
type Block struct {
	Key               string         `json:"key"`
	Text              string         `json:"text"`
	Type              BlockType      `json:"type"`
	Depth             int            `json:"depth"`
	InlineStyleRanges []StyleRange   `json:"inlineStyleRanges"`
	EntityRanges      []EntityRange  `json:"entityRanges"`
	Data              map[string]any `json:"data"`
}

// Len returns the length of the block's text in UTF-16 code units.
func (b *Block) Len() int {
	return len(utf16.Encode([]rune(b.Text)))
}

// EntityImage is the only entity type the site produces.
const (
	EntityImage     = "IMAGE"
	MutabilityFixed = "IMMUTABLE"
)

// Entity is a non-text object referenced from a block.
type Entity struct {
	Type       string     `json:"type"`
	Mutability string     `json:"mutability"`
	Data       EntityData `json:"data"`
}

// EntityData carries the entity payload. Src is not validated.
type EntityData struct {
	Src string `json:"src"`
}

// NewImageEntity returns an immutable image entity.
func NewImageEntity(src string) Entity {
	return Entity{Type: EntityImage, Mutability: MutabilityFixed, Data: EntityData{Src: src}}
}

// Document is an ordered sequence of blocks plus the entities they
// reference. Entity keys are integers internally; the stored form uses
// string keys in the entity map (see MarshalJSON).
type Document struct {
	Blocks    []Block
	EntityMap map[EntityKey]Entity
}

// NewDocument returns a document holding a single empty paragraph, the
// state an editor opens with when there is no prior content.
func NewDocument() *Document {
	return &Document{
		Blocks:    []Block{{Key: newBlockKey(nil), Type: Unstyled}},
		EntityMap: map[EntityKey]Entity{},
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{
		Blocks:    make([]Block, len(d.Blocks)),
		EntityMap: make(map[EntityKey]Entity, len(d.EntityMap)),
	}
	for i, b := range d.Blocks {
		b.InlineStyleRanges = append([]StyleRange(nil), b.InlineStyleRanges...)
		b.EntityRanges = append([]EntityRange(nil), b.EntityRanges...)
		if b.Data != nil {
			data := make(map[string]any, len(b.Data))
			for k, v := range b.Data {
				data[k] = v
			}
			b.Data = data
		}
		out.Blocks[i] = b
	}
	for k, e := range d.EntityMap {
		out.EntityMap[k] = e
	}
	return out
}

// Validate reports every invariant violation in d. Rendering and
// serialization never fail on these; they clamp or skip instead.
func (d *Document) Validate() error {
	var err error
	for i := range d.Blocks {
		b := &d.Blocks[i]
		n := b.Len()
		if !b.Type.Known() {
			err = multierr.Append(err, fmt.Errorf("block %q: unknown type %q", b.Key, b.Type))
		}
		for _, r := range b.InlineStyleRanges {
			if r.Offset < 0 || r.Length <= 0 || r.Offset+r.Length > n {
				err = multierr.Append(err, fmt.Errorf("block %q: style range %d+%d outside text of length %d", b.Key, r.Offset, r.Length, n))
			}
		}
		for _, r := range b.EntityRanges {
			if _, ok := d.EntityMap[r.Key]; !ok {
				err = multierr.Append(err, fmt.Errorf("block %q: dangling entity key %d", b.Key, r.Key))
			}
			if r.Offset < 0 || r.Length <= 0 || r.Offset+r.Length > n {
				err = multierr.Append(err, fmt.Errorf("block %q: entity range %d+%d outside text of length %d", b.Key, r.Offset, r.Length, n))
			}
		}
	}
	return err
}

// clampRange limits [offset, offset+length) to [0, n).
func clampRange(offset, length, n int) (int, int) {
	start := max(offset, 0)
	end := min(offset+length, n)
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}
	return start, end
}
