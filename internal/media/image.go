// Package media converts uploaded images and videos into bounded, web-friendly renditions.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/h2non/filetype"
)

// Default image rendition settings
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
	DefaultQuality   = 80
	// MaxMethod is the slowest, best-compressing WebP effort level
	MaxMethod = 6

	WebPExt         = ".webp"
	WebPContentType = "image/webp"
)

// ErrUnsupportedMedia is returned when bytes cannot be decoded as a raster image
var ErrUnsupportedMedia = errors.New("unsupported image data")

// ImageConfig bounds the normalized rendition
type ImageConfig struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Method    int
}

// DefaultImageConfig returns the 1920x1080, quality 80, max effort configuration
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
		Method:    MaxMethod,
	}
}

// NormalizedImage is the WebP rendition of an upload
type NormalizedImage struct {
	Data        []byte
	Width       int
	Height      int
	Ext         string
	ContentType string
}

// ImageNormalizer re-encodes raster images as bounded WebP
type ImageNormalizer struct {
	cfg ImageConfig
}

// NewImageNormalizer creates a normalizer, filling zero fields with defaults
func NewImageNormalizer(cfg ImageConfig) *ImageNormalizer {
	def := DefaultImageConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	if cfg.Method <= 0 || cfg.Method > MaxMethod {
		cfg.Method = def.Method
	}
	return &ImageNormalizer{cfg: cfg}
}

// Config returns the effective configuration
func (n *ImageNormalizer) Config() ImageConfig {
	return n.cfg
}

// Normalize decodes data, flattens transparency onto white, fits the image
// inside the configured box without upscaling and encodes it as WebP.
func (n *ImageNormalizer) Normalize(data []byte) (*NormalizedImage, error) {
	src, err := decode(data)
	if err != nil {
		return nil, err
	}

	flat := flatten(src)
	fitted := imaging.Fit(flat, n.cfg.MaxWidth, n.cfg.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, fitted, webp.Options{
		Quality: n.cfg.Quality,
		Method:  n.cfg.Method,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	b := fitted.Bounds()
	return &NormalizedImage{
		Data:        buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		Ext:         WebPExt,
		ContentType: WebPContentType,
	}, nil
}

// decode sniffs the container from magic bytes and decodes the first frame
func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrUnsupportedMedia
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, ErrUnsupportedMedia
	}

	var img image.Image
	switch kind.MIME.Value {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
	case "image/gif":
		img, _, err = image.Decode(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedMedia
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrUnsupportedMedia
	}
	return img, nil
}

// flatten composites img over an opaque white canvas
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// NormalizedFilename swaps the extension of original for .webp
func NormalizedFilename(original string) string {
	base := strings.TrimSuffix(original, filepath.Ext(original))
	if base == "" {
		base = "image"
	}
	return base + WebPExt
}
