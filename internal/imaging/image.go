// Package imaging decodes uploaded images into raw RGBA buffers and computes
// the pixel statistics used by the verification pipeline.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrImageDecode is returned when an image buffer cannot be rendered to pixels.
var ErrImageDecode = errors.New("image decode failure")

// MaxPixels bounds width*height of a decodable image. Compressed uploads are
// capped in bytes, which says nothing about the decoded size.
const MaxPixels = 40_000_000

// RawImage is a decoded bitmap with 4 interleaved bytes per pixel (R, G, B, A).
type RawImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRawImage wraps an existing pixel buffer. The buffer length must be
// width*height*4.
func NewRawImage(width, height int, pix []byte) (RawImage, error) {
	if width < 0 || height < 0 {
		return RawImage{}, fmt.Errorf("%w: negative dimensions %dx%d", ErrImageDecode, width, height)
	}
	if len(pix) != width*height*4 {
		return RawImage{}, fmt.Errorf("%w: buffer length %d does not match %dx%d", ErrImageDecode, len(pix), width, height)
	}
	return RawImage{Width: width, Height: height, Pix: pix}, nil
}

// PixelCount returns width*height.
func (r RawImage) PixelCount() int {
	return r.Width * r.Height
}

// Decode renders a PNG, JPEG, GIF or WEBP buffer into a RawImage with
// non-premultiplied alpha.
func Decode(data []byte) (RawImage, error) {
	if len(data) == 0 {
		return RawImage{}, fmt.Errorf("%w: empty buffer", ErrImageDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return RawImage{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return RawImage{}, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrImageDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return RawImage{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	if dst.Stride != bounds.Dx()*4 {
		return RawImage{}, fmt.Errorf("%w: unexpected stride for %s image", ErrImageDecode, format)
	}
	return RawImage{Width: bounds.Dx(), Height: bounds.Dy(), Pix: dst.Pix}, nil
}

// DecodeContext is Decode bounded by ctx. A decode that outlives the context
// is reported as ErrImageDecode; the background decode is left to finish on
// its own.
func DecodeContext(ctx context.Context, data []byte) (RawImage, error) {
	type decoded struct {
		img RawImage
		err error
	}
	done := make(chan decoded, 1)
	go func() {
		img, err := Decode(data)
		done <- decoded{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return RawImage{}, fmt.Errorf("%w: %v", ErrImageDecode, ctx.Err())
	case res := <-done:
		return res.img, res.err
	}
}
