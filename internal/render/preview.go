package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Marker is a portal seen from above.
type Marker struct {
	X, Z   float32
	Radius float32
	Yaw    float32
	Color  color.RGBA
	Label  string
}

// Preview is what the top-down image shows. Coordinates are world X/Z.
type Preview struct {
	Portals []Marker
	PlayerX float32
	PlayerZ float32
	CameraX float32
	CameraZ float32
	Warping bool
}

// DrawPreview renders p into a width x height image. The view is centered
// on the player and scaled to fit every portal.
func DrawPreview(p Preview, width, height int) image.Image {
	dc := gg.NewContext(width, height)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	extent := 10.0
	for _, m := range p.Portals {
		dx := math.Abs(float64(m.X-p.PlayerX)) + float64(m.Radius)
		dz := math.Abs(float64(m.Z-p.PlayerZ)) + float64(m.Radius)
		extent = math.Max(extent, math.Max(dx, dz))
	}
	scale := math.Min(float64(width), float64(height)) / (2 * extent * 1.1)
	toScreen := func(x, z float32) (float64, float64) {
		return float64(width)/2 + float64(x-p.PlayerX)*scale,
			float64(height)/2 + float64(z-p.PlayerZ)*scale
	}

	drawGrid(dc, width, height, 10*scale)

	for _, m := range p.Portals {
		// the ring stands upright, so from above it is a segment across
		// its diameter, perpendicular to its facing
		cx, cy := toScreen(m.X, m.Z)
		r := float64(m.Radius) * scale
		ux, uy := math.Cos(float64(m.Yaw)), -math.Sin(float64(m.Yaw))

		dc.SetColor(m.Color)
		dc.SetLineWidth(4)
		dc.DrawLine(cx-ux*r, cy-uy*r, cx+ux*r, cy+uy*r)
		dc.Stroke()
		dc.DrawStringAnchored(m.Label, cx, cy-12, 0.5, 0.5)
	}

	cx, cy := toScreen(p.CameraX, p.CameraZ)
	dc.SetColor(color.RGBA{120, 160, 255, 255})
	dc.DrawRectangle(cx-3, cy-3, 6, 6)
	dc.Fill()

	px, py := toScreen(p.PlayerX, p.PlayerZ)
	dc.SetColor(color.White)
	dc.DrawCircle(px, py, 5)
	dc.Fill()

	if p.Warping {
		dc.SetColor(color.RGBA{180, 180, 255, 255})
		dc.DrawStringAnchored("WARPING", float64(width)/2, 16, 0.5, 0.5)
	}
	return dc.Image()
}

func drawGrid(dc *gg.Context, width, height int, step float64) {
	if step < 4 {
		return
	}
	dc.SetColor(color.RGBA{30, 30, 45, 255})
	dc.SetLineWidth(1)
	for x := math.Mod(float64(width)/2, step); x < float64(width); x += step {
		dc.DrawLine(x, 0, x, float64(height))
		dc.Stroke()
	}
	for y := math.Mod(float64(height)/2, step); y < float64(height); y += step {
		dc.DrawLine(0, y, float64(width), y)
		dc.Stroke()
	}
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
