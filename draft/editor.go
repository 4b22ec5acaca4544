package draft

import (
	"fmt"
	"slices"
	"sort"
	"unicode/utf16"
)

// Selection is a range between two caret positions. Anchor is where the
// selection started and may come after Focus in document order.
type Selection struct {
	AnchorKey    string `json:"anchorKey"`
	AnchorOffset int    `json:"anchorOffset"`
	FocusKey     string `json:"focusKey"`
	FocusOffset  int    `json:"focusOffset"`
}

// Caret returns a collapsed selection.
func Caret(key string, offset int) Selection {
	return Selection{AnchorKey: key, AnchorOffset: offset, FocusKey: key, FocusOffset: offset}
}

// Range returns a selection from (startKey, start) to (endKey, end).
func Range(startKey string, start int, endKey string, end int) Selection {
	return Selection{AnchorKey: startKey, AnchorOffset: start, FocusKey: endKey, FocusOffset: end}
}

func (s Selection) IsCollapsed() bool {
	return s.AnchorKey == s.FocusKey && s.AnchorOffset == s.FocusOffset
}

// EditorState is the live document an editor mutates together with the
// current selection. It is not safe for concurrent use; one editor owns it.
type EditorState struct {
	doc *Document
	sel Selection

	// override holds the styles for the next insertion at a collapsed
	// caret. nil means inherit from the preceding character.
	override []Style
	onChange func(raw string)
}

// NewEditorState opens raw for editing. Empty or unparseable content
// opens an empty document.
func NewEditorState(raw string) *EditorState {
	doc := Deserialize(raw)
	fixBlockKeys(doc)
	return &EditorState{doc: doc, sel: Caret(doc.Blocks[0].Key, 0)}
}

// fixBlockKeys gives every block a unique non-empty key.
func fixBlockKeys(d *Document) {
	taken := make(map[string]bool, len(d.Blocks))
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Key == "" || taken[b.Key] {
			b.Key = newBlockKey(taken)
		}
		taken[b.Key] = true
	}
}

// OnChange registers fn to receive the serialized document after every
// content mutation.
func (s *EditorState) OnChange(fn func(raw string)) {
	s.onChange = fn
}

// Document returns a copy of the current content.
func (s *EditorState) Document() *Document {
	return s.doc.Clone()
}

// Raw returns the serialized current content.
func (s *EditorState) Raw() string {
	return Serialize(s.doc)
}

func (s *EditorState) Selection() Selection {
	return s.sel
}

// Select moves the selection. Pending caret styles are discarded.
func (s *EditorState) Select(sel Selection) {
	s.sel = sel
	s.override = nil
}

// BlockKeys returns the keys of all blocks in order.
func (s *EditorState) BlockKeys() []string {
	keys := make([]string, len(s.doc.Blocks))
	for i, b := range s.doc.Blocks {
		keys[i] = b.Key
	}
	return keys
}

func (s *EditorState) changed() {
	if s.onChange != nil {
		s.onChange(Serialize(s.doc))
	}
}

func (s *EditorState) blockIndex(key string) int {
	for i := range s.doc.Blocks {
		if s.doc.Blocks[i].Key == key {
			return i
		}
	}
	return -1
}

// ordered returns the selection endpoints as block indexes and offsets in
// document order. ok is false if either key is unknown.
func (s *EditorState) ordered() (startIdx, startOff, endIdx, endOff int, ok bool) {
	a, f := s.blockIndex(s.sel.AnchorKey), s.blockIndex(s.sel.FocusKey)
	if a < 0 || f < 0 {
		return 0, 0, 0, 0, false
	}
	ao, fo := s.sel.AnchorOffset, s.sel.FocusOffset
	if a > f || (a == f && ao > fo) {
		a, f, ao, fo = f, a, fo, ao
	}
	return a, clampOffset(ao, s.doc.Blocks[a].Len()), f, clampOffset(fo, s.doc.Blocks[f].Len()), true
}

func clampOffset(off, n int) int {
	return min(max(off, 0), n)
}

type span struct {
	idx, from, to int
}

// spans returns the non-empty per-block pieces of the selection.
func (s *EditorState) spans() []span {
	a, ao, f, fo, ok := s.ordered()
	if !ok {
		return nil
	}
	var out []span
	for i := a; i <= f; i++ {
		from, to := 0, s.doc.Blocks[i].Len()
		if i == a {
			from = ao
		}
		if i == f {
			to = fo
		}
		if to > from {
			out = append(out, span{idx: i, from: from, to: to})
		}
	}
	return out
}

// CurrentInlineStyle returns the styles the next typed character would
// get, sorted.
func (s *EditorState) CurrentInlineStyle() []Style {
	if s.override != nil {
		return slices.Clone(s.override)
	}
	a, ao, _, _, ok := s.ordered()
	if !ok {
		return nil
	}
	blk := &s.doc.Blocks[a]
	switch {
	case s.sel.IsCollapsed() && ao > 0:
		return stylesAt(blk, ao-1)
	case blk.Len() > ao:
		return stylesAt(blk, ao)
	case ao > 0:
		return stylesAt(blk, ao-1)
	}
	return nil
}

func stylesAt(blk *Block, i int) []Style {
	var out []Style
	for _, r := range blk.InlineStyleRanges {
		if r.Offset <= i && i < r.Offset+r.Length && !slices.Contains(out, r.Style) {
			out = append(out, r.Style)
		}
	}
	slices.Sort(out)
	return out
}

// covered reports whether every code unit in [from, to) carries style.
func covered(blk *Block, from, to int, style Style) bool {
	hit := make([]bool, to-from)
	for _, r := range blk.InlineStyleRanges {
		if r.Style != style {
			continue
		}
		start, end := clampRange(r.Offset, r.Length, to)
		for i := max(start, from); i < end; i++ {
			hit[i-from] = true
		}
	}
	return !slices.Contains(hit, false)
}

// ToggleInlineStyle applies style to the selection unless every selected
// character already has it, in which case it is removed. On a collapsed
// caret it toggles the style for the next insertion.
func (s *EditorState) ToggleInlineStyle(style Style) {
	if s.sel.IsCollapsed() {
		cur := s.CurrentInlineStyle()
		if i := slices.Index(cur, style); i >= 0 {
			cur = slices.Delete(cur, i, i+1)
		} else {
			cur = append(cur, style)
			slices.Sort(cur)
		}
		if cur == nil {
			cur = []Style{}
		}
		s.override = cur
		return
	}
	spans := s.spans()
	if len(spans) == 0 {
		return
	}
	everywhere := true
	for _, sp := range spans {
		if !covered(&s.doc.Blocks[sp.idx], sp.from, sp.to, style) {
			everywhere = false
			break
		}
	}
	for _, sp := range spans {
		blk := &s.doc.Blocks[sp.idx]
		if everywhere {
			removeStyle(blk, sp.from, sp.to, func(st Style) bool { return st == style })
		} else {
			applyStyle(blk, sp.from, sp.to, style)
		}
	}
	s.changed()
}

// ApplyColor sets the text color of the selection. Every other color is
// removed from the selected characters first, so at most one color covers
// any character afterwards.
func (s *EditorState) ApplyColor(hex string) error {
	style := ColorStyle(hex)
	if style == "" {
		return fmt.Errorf("invalid color %q", hex)
	}
	if s.sel.IsCollapsed() {
		cur := slices.DeleteFunc(s.CurrentInlineStyle(), Style.IsColor)
		cur = append(cur, style)
		slices.Sort(cur)
		s.override = cur
		return nil
	}
	spans := s.spans()
	if len(spans) == 0 {
		return nil
	}
	for _, sp := range spans {
		blk := &s.doc.Blocks[sp.idx]
		removeStyle(blk, sp.from, sp.to, Style.IsColor)
		applyStyle(blk, sp.from, sp.to, style)
	}
	s.changed()
	return nil
}

// ToggleBlockType sets every selected block to t, or back to unstyled if
// they all already are t. Atomic blocks are left alone.
func (s *EditorState) ToggleBlockType(t BlockType) {
	a, _, f, _, ok := s.ordered()
	if !ok {
		return
	}
	all := true
	for i := a; i <= f; i++ {
		if b := &s.doc.Blocks[i]; b.Type != Atomic && b.Type != t {
			all = false
		}
	}
	target := t
	if all {
		target = Unstyled
	}
	for i := a; i <= f; i++ {
		if s.doc.Blocks[i].Type != Atomic {
			s.doc.Blocks[i].Type = target
		}
	}
	s.changed()
}

func (s *EditorState) nextEntityKey() EntityKey {
	next := EntityKey(0)
	for k := range s.doc.EntityMap {
		if k >= next {
			next = k + 1
		}
	}
	return next
}

func (s *EditorState) takenKeys() map[string]bool {
	taken := make(map[string]bool, len(s.doc.Blocks))
	for _, b := range s.doc.Blocks {
		taken[b.Key] = true
	}
	return taken
}

// InsertImage adds an image entity and an atomic block referencing it
// after the block holding the end of the selection, followed by an empty
// paragraph that receives the caret.
func (s *EditorState) InsertImage(src string) EntityKey {
	key := s.nextEntityKey()
	if s.doc.EntityMap == nil {
		s.doc.EntityMap = map[EntityKey]Entity{}
	}
	s.doc.EntityMap[key] = NewImageEntity(src)

	idx := len(s.doc.Blocks) - 1
	if _, _, f, _, ok := s.ordered(); ok {
		idx = f
	}
	taken := s.takenKeys()
	img := Block{
		Key:          newBlockKey(taken),
		Text:         " ",
		Type:         Atomic,
		EntityRanges: []EntityRange{{Offset: 0, Length: 1, Key: key}},
	}
	taken[img.Key] = true
	after := Block{Key: newBlockKey(taken), Type: Unstyled}

	s.doc.Blocks = slices.Insert(s.doc.Blocks, idx+1, img, after)
	s.sel = Caret(after.Key, 0)
	s.override = nil
	s.changed()
	return key
}

// InsertText types text at the caret. A selection within one block is
// replaced; a selection spanning blocks collapses to its end first. The
// new text takes the pending caret styles or those of the preceding
// character.
func (s *EditorState) InsertText(text string) {
	if text == "" {
		return
	}
	styles := s.CurrentInlineStyle()
	a, ao, f, fo, ok := s.ordered()
	if !ok {
		return
	}
	blk := &s.doc.Blocks[f]
	pos := fo
	if a == f && ao < fo {
		deleteRange(blk, ao, fo)
		pos = ao
	}

	units := utf16.Encode([]rune(blk.Text))
	ins := utf16.Encode([]rune(text))
	n := len(ins)
	out := make([]uint16, 0, len(units)+n)
	out = append(out, units[:pos]...)
	out = append(out, ins...)
	out = append(out, units[pos:]...)
	blk.Text = string(utf16.Decode(out))

	for i := range blk.InlineStyleRanges {
		r := &blk.InlineStyleRanges[i]
		if r.Offset >= pos {
			r.Offset += n
		} else if r.Offset+r.Length > pos {
			r.Length += n
		}
	}
	for i := range blk.EntityRanges {
		r := &blk.EntityRanges[i]
		if r.Offset >= pos {
			r.Offset += n
		} else if r.Offset+r.Length > pos {
			r.Length += n
		}
	}
	removeStyle(blk, pos, pos+n, func(Style) bool { return true })
	for _, st := range styles {
		applyStyle(blk, pos, pos+n, st)
	}

	s.sel = Caret(blk.Key, pos+n)
	s.override = nil
	s.changed()
}

// SplitBlock breaks the block at the caret in two. List items and quotes
// keep their type; headings continue as a paragraph.
func (s *EditorState) SplitBlock() {
	_, _, f, fo, ok := s.ordered()
	if !ok || s.doc.Blocks[f].Type == Atomic {
		return
	}
	blk := &s.doc.Blocks[f]
	units := utf16.Encode([]rune(blk.Text))

	next := Block{Key: newBlockKey(s.takenKeys()), Type: blk.Type, Depth: blk.Depth}
	switch blk.Type {
	case HeaderOne, HeaderTwo, HeaderThree:
		next.Type = Unstyled
	}
	next.Text = string(utf16.Decode(units[fo:]))
	blk.Text = string(utf16.Decode(units[:fo]))

	var head []StyleRange
	for _, r := range blk.InlineStyleRanges {
		start, end := clampRange(r.Offset, r.Length, len(units))
		if start < fo {
			head = append(head, StyleRange{Offset: start, Length: min(end, fo) - start, Style: r.Style})
		}
		if end > fo {
			from := max(start, fo)
			next.InlineStyleRanges = append(next.InlineStyleRanges, StyleRange{Offset: from - fo, Length: end - from, Style: r.Style})
		}
	}
	blk.InlineStyleRanges = head

	var headEntities []EntityRange
	for _, r := range blk.EntityRanges {
		if r.Offset < fo {
			headEntities = append(headEntities, r)
		} else {
			r.Offset -= fo
			next.EntityRanges = append(next.EntityRanges, r)
		}
	}
	blk.EntityRanges = headEntities

	s.doc.Blocks = slices.Insert(s.doc.Blocks, f+1, next)
	s.sel = Caret(next.Key, 0)
	s.changed()
}

// deleteRange removes code units [from, to) from blk, shrinking ranges.
func deleteRange(blk *Block, from, to int) {
	units := utf16.Encode([]rune(blk.Text))
	from, to = clampOffset(from, len(units)), clampOffset(to, len(units))
	if to <= from {
		return
	}
	blk.Text = string(utf16.Decode(append(units[:from:from], units[to:]...)))

	shift := func(x int) int {
		switch {
		case x <= from:
			return x
		case x < to:
			return from
		}
		return x - (to - from)
	}
	styles := blk.InlineStyleRanges[:0]
	for _, r := range blk.InlineStyleRanges {
		start, end := shift(r.Offset), shift(r.Offset+r.Length)
		if end > start {
			styles = append(styles, StyleRange{Offset: start, Length: end - start, Style: r.Style})
		}
	}
	blk.InlineStyleRanges = styles

	entities := blk.EntityRanges[:0]
	for _, r := range blk.EntityRanges {
		start, end := shift(r.Offset), shift(r.Offset+r.Length)
		if end > start {
			entities = append(entities, EntityRange{Offset: start, Length: end - start, Key: r.Key})
		}
	}
	blk.EntityRanges = entities
}

// removeStyle strips every style matching pred from [from, to).
func removeStyle(blk *Block, from, to int, pred func(Style) bool) {
	n := blk.Len()
	var out []StyleRange
	for _, r := range blk.InlineStyleRanges {
		if !pred(r.Style) {
			out = append(out, r)
			continue
		}
		start, end := clampRange(r.Offset, r.Length, n)
		if left := min(end, from); left > start {
			out = append(out, StyleRange{Offset: start, Length: left - start, Style: r.Style})
		}
		if right := max(start, to); end > right {
			out = append(out, StyleRange{Offset: right, Length: end - right, Style: r.Style})
		}
	}
	blk.InlineStyleRanges = out
	normalizeRanges(blk)
}

func applyStyle(blk *Block, from, to int, style Style) {
	blk.InlineStyleRanges = append(blk.InlineStyleRanges, StyleRange{Offset: from, Length: to - from, Style: style})
	normalizeRanges(blk)
}

// normalizeRanges coalesces each style's ranges into maximal disjoint runs
// and orders them by offset, then style.
func normalizeRanges(blk *Block) {
	n := blk.Len()
	coverage := map[Style][]bool{}
	var order []Style
	for _, r := range blk.InlineStyleRanges {
		start, end := clampRange(r.Offset, r.Length, n)
		if end <= start {
			continue
		}
		c, ok := coverage[r.Style]
		if !ok {
			c = make([]bool, n)
			coverage[r.Style] = c
			order = append(order, r.Style)
		}
		for i := start; i < end; i++ {
			c[i] = true
		}
	}

	var out []StyleRange
	for _, style := range order {
		c := coverage[style]
		for i := 0; i < n; {
			if !c[i] {
				i++
				continue
			}
			j := i
			for j < n && c[j] {
				j++
			}
			out = append(out, StyleRange{Offset: i, Length: j - i, Style: style})
			i = j
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Style < out[j].Style
	})
	blk.InlineStyleRanges = out
}
