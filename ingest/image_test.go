package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, dataURL string) image.Image {
	t.Helper()
	mime, b, err := DecodeDataURL(dataURL)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mime)
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestCompressor_Downscales(t *testing.T) {
	src := pngOf(t, 1600, 800, color.NRGBA{R: 200, A: 255})
	url, err := EditorImage.ToDataURL(bytes.NewReader(src))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

	img := decodeJPEG(t, url)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestCompressor_KeepsSmallImages(t *testing.T) {
	src := pngOf(t, 120, 60, color.NRGBA{G: 200, A: 255})
	url, err := Thumbnail.ToDataURL(bytes.NewReader(src))
	require.NoError(t, err)

	img := decodeJPEG(t, url)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestCompressor_FlattensTransparency(t *testing.T) {
	src := pngOf(t, 16, 16, color.NRGBA{})
	url, err := EditorImage.ToDataURL(bytes.NewReader(src))
	require.NoError(t, err)

	r, g, b, _ := decodeJPEG(t, url).At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestCompressor_RejectsNonImage(t *testing.T) {
	_, err := EditorImage.ToDataURL(strings.NewReader("plain text"))
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	mime, b, err := DecodeDataURL(BytesToDataURL("image/png", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte{1, 2, 3}, b)

	for _, bad := range []string{
		"https://example.com/a.jpg",
		"data:image/png,abc",
		"data:image/png;base64",
		"data:image/png;base64,@@@",
	} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrNotDataURL, bad)
	}
}

type fakeUploader struct {
	got []byte
}

func (f *fakeUploader) Upload(_ context.Context, data []byte, contentType string) (string, error) {
	f.got = data
	return "https://cdn.test/images/x.jpg", nil
}

func TestService_Source(t *testing.T) {
	src := pngOf(t, 10, 10, color.NRGBA{B: 255, A: 255})

	plain := &Service{Compressor: EditorImage}
	url, err := plain.Source(context.Background(), bytes.NewReader(src))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

	up := &fakeUploader{}
	remote := &Service{Compressor: EditorImage, Uploader: up}
	url, err = remote.Source(context.Background(), bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/images/x.jpg", url)
	_, err = jpeg.Decode(bytes.NewReader(up.got))
	assert.NoError(t, err)
}

func TestMinioUploader(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO tests")
	}
	u, err := NewMinioUploader(context.Background(), MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "kimsabu-test",
	})
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), pngOf(t, 2, 2, color.White), "image/png")
	require.NoError(t, err)
	assert.Contains(t, url, "/kimsabu-test/images/")
}
