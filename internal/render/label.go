// Package render rasterizes the 2D pieces of a session: portal label
// textures and a top-down preview image.
package render

import (
	"errors"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const LabelFontSize = 32

// ErrNoSurface is returned when a texture of the requested size cannot be
// allocated.
var ErrNoSurface = errors.New("render: invalid drawing surface size")

// LabelRasterizer draws portal labels with a TrueType font when one can be
// found and with the built-in bitmap face otherwise.
type LabelRasterizer struct {
	fontPath string

	warnOnce sync.Once
}

// NewLabelRasterizer uses fontPath, or the first font found on the system
// when it is empty.
func NewLabelRasterizer(fontPath string) *LabelRasterizer {
	if fontPath == "" {
		fontPath = FindFontPath()
	}
	return &LabelRasterizer{fontPath: fontPath}
}

// RasterizeLabel draws text centered on a transparent width x height
// texture in color c.
func (r *LabelRasterizer) RasterizeLabel(text string, c color.RGBA, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrNoSurface
	}
	dc := gg.NewContext(width, height)

	if r.fontPath == "" || dc.LoadFontFace(r.fontPath, LabelFontSize) != nil {
		r.warnOnce.Do(func() {
			log.Printf("⚠️ No TrueType font available (%q), labels use the bitmap face", r.fontPath)
		})
		dc.SetFontFace(basicfont.Face7x13)
	}

	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(width)/2, float64(height)/2, 0.5, 0.5)
	return dc.Image(), nil
}

// FindFontPath returns the first font present in common locations.
func FindFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arialbd.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
