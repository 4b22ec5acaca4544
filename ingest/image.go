// Package ingest turns uploaded or downloaded images into sources a
// document can reference: compressed JPEG data URLs, or object storage
// URLs when an Uploader is configured.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"strings"

	// Decoders for formats an upload may arrive in.
	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

const jpegMIME = "image/jpeg"

var ErrNotDataURL = errors.New("not a base64 data URL")

// Compressor downscales images to MaxWidth, keeping the aspect ratio, and
// re-encodes them as JPEG. Images narrower than MaxWidth keep their size.
type Compressor struct {
	MaxWidth uint
	Quality  int
}

var (
	// EditorImage is used for images inserted into document content.
	EditorImage = Compressor{MaxWidth: 800, Quality: 85}
	// Thumbnail is used for work thumbnails.
	Thumbnail = Compressor{MaxWidth: 1200, Quality: 85}
)

// Compress decodes r and returns the re-encoded JPEG bytes.
func (c Compressor) Compress(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if w := uint(img.Bounds().Dx()); c.MaxWidth > 0 && w > c.MaxWidth {
		img = resize.Resize(c.MaxWidth, 0, img, resize.Lanczos3)
	}

	// JPEG has no alpha; transparent pixels become white.
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToDataURL compresses r and returns it as a data:image/jpeg URL.
func (c Compressor) ToDataURL(r io.Reader) (string, error) {
	b, err := c.Compress(r)
	if err != nil {
		return "", err
	}
	return BytesToDataURL(jpegMIME, b), nil
}

// BytesToDataURL encodes b as a base64 data URL of the given type.
func BytesToDataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// DecodeDataURL splits a base64 data URL into its media type and payload.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	return mime, b, nil
}
