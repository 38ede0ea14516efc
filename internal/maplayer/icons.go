// Package maplayer drives map engine state from application pin lists: icon
// registration, feature source sync, and the per-layer lifecycle controller.
package maplayer

import (
	"fmt"
	"image"
	"image/color"
	"net/http"

	// Register decoders for raster icon sources.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/loveofminnesota/pinmap/internal/engine"
)

// IconSize is the pixel size icons are rasterized at before registration.
const IconSize = 32

// IconSource produces the pixel buffer for one visual asset.
type IconSource interface {
	Render() (image.Image, error)
}

// EmojiIcon rasterizes a single glyph onto a transparent canvas.
type EmojiIcon struct {
	Glyph string
}

func (i EmojiIcon) Render() (image.Image, error) {
	if i.Glyph == "" {
		return nil, fmt.Errorf("empty glyph")
	}
	dst := image.NewRGBA(image.Rect(0, 0, IconSize, IconSize))
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	w := d.MeasureString(i.Glyph)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(IconSize) - w) / 2,
		Y: fixed.I((IconSize + basicfont.Face7x13.Ascent) / 2),
	}
	d.DrawString(i.Glyph)
	return dst, nil
}

// RasterIcon fetches and decodes an image URL, scaled to IconSize.
type RasterIcon struct {
	URL    string
	Client *http.Client
}

func (i RasterIcon) Render() (image.Image, error) {
	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(i.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching icon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching icon: status %d", resp.StatusCode)
	}

	src, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding icon: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, IconSize, IconSize))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst, nil
}

// IconCache registers images with the engine exactly once per style load.
// The engine's own registry is the source of truth, so a style swap (which
// discards all images) naturally resets the cache.
type IconCache struct {
	m   engine.Map
	log zerolog.Logger
}

// NewIconCache creates a cache bound to one engine instance.
func NewIconCache(m engine.Map, log zerolog.Logger) *IconCache {
	return &IconCache{m: m, log: log}
}

// Ensure registers the asset under id if the engine does not already have
// it. Render or registration failures are logged and swallowed: a missing
// icon degrades the visual only and must never abort layer creation.
func (c *IconCache) Ensure(id string, src IconSource) {
	if c.m.Removed() || c.m.HasImage(id) {
		return
	}
	img, err := src.Render()
	if err != nil {
		c.log.Warn().Err(err).Str("image", id).Msg("icon render failed")
		return
	}
	if err := c.m.AddImage(id, img); err != nil {
		c.log.Warn().Err(err).Str("image", id).Msg("icon registration failed")
	}
}
