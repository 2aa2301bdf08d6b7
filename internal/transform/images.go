package transform

import (
	"bytes"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
)

// ImageOptimizer re-encodes an image. Signature identifies the settings so
// cached results can be keyed on them; it must change whenever output would.
type ImageOptimizer interface {
	Optimize(ext string, data []byte) ([]byte, error)
	Signature() string
}

// CodecOptimizer uses the standard image codecs for raster formats and the
// SVG minifier for vector images. WebP is passed through unchanged.
type CodecOptimizer struct {
	jpegQuality int
	pngLevel    png.CompressionLevel
	pngName     string
	minifier    *Minifier
}

// NewCodecOptimizer builds an optimizer. pngCompression is one of default, speed, best, none.
func NewCodecOptimizer(jpegQuality int, pngCompression string, minifier *Minifier) *CodecOptimizer {
	level := png.BestCompression
	switch pngCompression {
	case "default":
		level = png.DefaultCompression
	case "speed":
		level = png.BestSpeed
	case "none":
		level = png.NoCompression
	default:
		pngCompression = "best"
	}
	if minifier == nil {
		minifier = NewMinifier()
	}
	return &CodecOptimizer{jpegQuality: jpegQuality, pngLevel: level, pngName: pngCompression, minifier: minifier}
}

func (o *CodecOptimizer) Signature() string {
	return fmt.Sprintf("codec/v1 jpeg=q%d png=%s gif=reencode svg=minify webp=copy", o.jpegQuality, o.pngName)
}

// Optimize encodes data according to its extension (with or without the dot).
func (o *CodecOptimizer) Optimize(ext string, data []byte) ([]byte, error) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	case "png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: o.pngLevel}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	case "gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, g); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
		return buf.Bytes(), nil
	case "svg":
		return o.minifier.SVG(data)
	default:
		return data, nil
	}
}

// SmallestOf returns optimized unless it is larger than original.
func SmallestOf(original, optimized []byte) []byte {
	if optimized == nil || len(optimized) > len(original) {
		return original
	}
	return optimized
}
