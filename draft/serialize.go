package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// EntityKey addresses an entity in a document's entity map. The stored
// format writes it as a string in the map and as an integer in entity
// ranges; both forms are accepted on decode.
type EntityKey int

// unresolvedKey is what a reference that is not an integer decodes to.
// Map keys are never negative, so it renders as a dangling entity.
const unresolvedKey EntityKey = -1

// UnmarshalJSON never fails: a key that is neither an integer nor an
// integer string becomes unresolvedKey.
func (k *EntityKey) UnmarshalJSON(b []byte) error {
	*k = unresolvedKey
	var n int
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(b, &n); err == nil {
		if n >= 0 {
			*k = EntityKey(n)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		*k = EntityKey(n)
	}
	return nil
}

var (
	errMissingBlocks    = errors.New("document has no blocks field")
	errMissingEntityMap = errors.New("document has no entityMap field")
)

type wireDocument struct {
	Blocks    []json.RawMessage          `json:"blocks"`
	EntityMap map[string]json.RawMessage `json:"entityMap"`
}

// UnmarshalJSON decodes the stored representation. Only a document whose
// blocks or entityMap is missing or of the wrong kind is an error. Inside
// them, decoding is per item: a block that is not an object is skipped,
// a field of the wrong type is left zero, a range that does not decode is
// dropped, and an entity map entry whose key is not a non-negative
// integer or whose value does not decode is dropped, so references to it
// render as dangling.
func (d *Document) UnmarshalJSON(b []byte) error {
	var w wireDocument
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Blocks == nil {
		return errMissingBlocks
	}
	if w.EntityMap == nil {
		return errMissingEntityMap
	}

	d.Blocks = make([]Block, 0, len(w.Blocks))
	for _, raw := range w.Blocks {
		if blk, ok := decodeBlock(raw); ok {
			d.Blocks = append(d.Blocks, blk)
		}
	}
	d.EntityMap = make(map[EntityKey]Entity, len(w.EntityMap))
	for k, raw := range w.EntityMap {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			continue
		}
		var e Entity
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		d.EntityMap[EntityKey(n)] = e
	}
	return nil
}

// decodeBlock decodes one block field by field. It reports false when
// raw is not a JSON object.
func decodeBlock(raw json.RawMessage) (Block, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Block{}, false
	}

	var b Block
	if !decodeField(fields["key"], &b.Key) {
		// Keys written as numbers keep their literal form.
		var n json.Number
		if decodeField(fields["key"], &n) {
			b.Key = n.String()
		}
	}
	decodeField(fields["text"], &b.Text)
	decodeField(fields["type"], &b.Type)
	decodeField(fields["depth"], &b.Depth)
	if !decodeField(fields["data"], &b.Data) {
		b.Data = nil
	}

	var ranges []json.RawMessage
	if decodeField(fields["inlineStyleRanges"], &ranges) {
		b.InlineStyleRanges = make([]StyleRange, 0, len(ranges))
		for _, r := range ranges {
			var sr StyleRange
			if json.Unmarshal(r, &sr) == nil {
				b.InlineStyleRanges = append(b.InlineStyleRanges, sr)
			}
		}
	}
	ranges = nil
	if decodeField(fields["entityRanges"], &ranges) {
		b.EntityRanges = make([]EntityRange, 0, len(ranges))
		for _, r := range ranges {
			er := EntityRange{Key: unresolvedKey}
			if json.Unmarshal(r, &er) == nil {
				b.EntityRanges = append(b.EntityRanges, er)
			}
		}
	}
	return b, true
}

func decodeField(raw json.RawMessage, v any) bool {
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// MarshalJSON writes the stored representation with blocks in order and
// entity keys ascending numerically.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"blocks":[`)
	for i := range d.Blocks {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, normalizedBlock(d.Blocks[i])); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`],"entityMap":{`)

	keys := make([]int, 0, len(d.EntityMap))
	for k := range d.EntityMap {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `"%d":`, k)
		if err := writeJSON(&buf, d.EntityMap[EntityKey(k)]); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// writeJSON encodes v without HTML escaping, matching what browsers
// produce for the same value.
func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// normalizedBlock replaces nil collections so they encode as [] and {}.
func normalizedBlock(b Block) Block {
	if b.Type == "" {
		b.Type = Unstyled
	}
	if b.InlineStyleRanges == nil {
		b.InlineStyleRanges = []StyleRange{}
	}
	if b.EntityRanges == nil {
		b.EntityRanges = []EntityRange{}
	}
	if b.Data == nil {
		b.Data = map[string]any{}
	}
	return b
}

// Serialize returns the portable string form of d. It never fails for
// documents built from this package's types.
func Serialize(d *Document) string {
	if d == nil {
		d = &Document{}
	}
	b, err := d.MarshalJSON()
	if err != nil {
		// Block.Data is the only free-form field; drop it rather than fail.
		c := d.Clone()
		for i := range c.Blocks {
			c.Blocks[i].Data = nil
		}
		b, _ = c.MarshalJSON()
	}
	return string(b)
}

// Parse decodes a stored document string.
func Parse(raw string) (*Document, error) {
	var d Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &d, nil
}

// Deserialize decodes raw for editing. Content that does not parse opens
// as an empty document.
func Deserialize(raw string) *Document {
	d, err := Parse(raw)
	if err != nil || len(d.Blocks) == 0 {
		return NewDocument()
	}
	return d
}

// Serializer reports the stored form of an editor's content each time a
// mutation changes it.
type Serializer struct {
	state *EditorState
	emit  func(raw string)
}

// NewSerializer attaches emit to state. It replaces any callback state
// already had.
func NewSerializer(state *EditorState, emit func(raw string)) *Serializer {
	s := &Serializer{state: state, emit: emit}
	state.OnChange(s.changed)
	return s
}

func (s *Serializer) changed(raw string) {
	if s.emit != nil {
		s.emit(raw)
	}
}

// Current serializes the editor's content without waiting for a change.
func (s *Serializer) Current() string {
	return s.state.Raw()
}

// newBlockKey returns a short random key not present in taken.
func newBlockKey(taken map[string]bool) string {
	for {
		id := ulid.Make().String()
		key := strings.ToLower(id[len(id)-5:])
		if !taken[key] {
			return key
		}
	}
}
