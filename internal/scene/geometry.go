package scene

import (
	"image"
	"image/color"

	"cogentcore.org/core/math32"
)

// Geometry holds flat vertex buffers in the layout a GPU renderer consumes:
// Positions and Colors are xyz / rgb triples, Indices reference vertices.
type Geometry struct {
	Positions []float32
	Colors    []float32
	Indices   []uint32

	// Bounds is used for geometry whose vertices are not resident
	// (for example meshes parsed from an asset without their buffers).
	Bounds *math32.Box3

	version uint64
}

// NewGeometry allocates position and color buffers for n vertices.
func NewGeometry(n int) *Geometry {
	return &Geometry{
		Positions: make([]float32, n*3),
		Colors:    make([]float32, n*3),
	}
}

// VertexCount returns the number of xyz triples in Positions.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Position returns vertex i.
func (g *Geometry) Position(i int) math32.Vector3 {
	return math32.Vec3(g.Positions[i*3], g.Positions[i*3+1], g.Positions[i*3+2])
}

// SetPosition writes vertex i.
func (g *Geometry) SetPosition(i int, v math32.Vector3) {
	g.Positions[i*3] = v.X
	g.Positions[i*3+1] = v.Y
	g.Positions[i*3+2] = v.Z
}

// SetColor writes the color of vertex i.
func (g *Geometry) SetColor(i int, r, gr, b float32) {
	g.Colors[i*3] = r
	g.Colors[i*3+1] = gr
	g.Colors[i*3+2] = b
}

// Touch flags the buffers as modified so the renderer re-uploads them.
func (g *Geometry) Touch() {
	g.version++
}

// Version increases every time Touch is called.
func (g *Geometry) Version() uint64 {
	return g.version
}

// BoundingBox computes the local-space box of the current vertices.
// It is never cached: callers mutate the buffers in place every frame.
func (g *Geometry) BoundingBox() math32.Box3 {
	if len(g.Positions) == 0 && g.Bounds != nil {
		return *g.Bounds
	}
	bb := math32.B3Empty()
	for i := 0; i+2 < len(g.Positions); i += 3 {
		bb.ExpandByPoint(math32.Vec3(g.Positions[i], g.Positions[i+1], g.Positions[i+2]))
	}
	return bb
}

// Material describes how the renderer shades a node.
type Material struct {
	Color        color.RGBA
	Opacity      float32
	Transparent  bool
	DoubleSided  bool
	VertexColors bool
	Emissive     bool
	PointSize    float32
	Texture      image.Image
}

// NewMaterial returns an opaque material of the given color.
func NewMaterial(c color.RGBA) *Material {
	return &Material{Color: c, Opacity: 1}
}
