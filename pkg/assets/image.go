package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	// Registered decoders for overlay and background images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// LoadImage reads and decodes the image behind uri.
func LoadImage(ctx context.Context, uri string) (image.Image, error) {
	if name, ok := builtinName(uri); ok {
		return BuiltinImage(name)
	}

	data, err := ReadURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// DecodeImage decodes PNG, JPEG, GIF, BMP or WebP data.
func DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, fmt.Errorf("%w: empty %s image", ErrUnsupportedFormat, format)
	}
	return img, nil
}

// NewImageCache returns a cache of decoded images.
func NewImageCache(logger *slog.Logger) *Cache[image.Image] {
	return NewCache(LoadImage, logger)
}
