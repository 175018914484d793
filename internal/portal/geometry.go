package portal

import (
	"image"
	"image/color"
	"log"
	"math/rand"
	"time"

	"cogentcore.org/core/math32"
	"github.com/lucasb-eyer/go-colorful"

	"vibeverse/internal/scene"
)

// Role tells the two portals apart.
type Role int

const (
	RoleEntrance Role = iota
	RoleExit
)

func (r Role) String() string {
	if r == RoleExit {
		return "exit"
	}
	return "entrance"
}

// LabelRasterizer draws portal label text onto a 2D texture.
type LabelRasterizer interface {
	RasterizeLabel(text string, c color.RGBA, width, height int) (image.Image, error)
}

// PortalVisual is the scene subtree of one portal. Root is the wrapper that
// carries the configured position and orientation.
type PortalVisual struct {
	Role      Role
	Config    PortalConfig
	Root      *scene.Node
	Inner     *scene.Node
	Ring      *scene.Node
	Disk      *scene.Node
	Particles *scene.Node
	Label     *scene.Node // nil when no label could be drawn
}

// BuildPortalVisual assembles ring, disk, particle halo and label for pc.
// The assembly is lifted so its lowest point sits on the wrapper origin.
// A missing or failing rasterizer only drops the label.
func BuildPortalVisual(pc PortalConfig, role Role, labels LabelRasterizer, rng *rand.Rand) *PortalVisual {
	r := pc.Radius
	col := parseColor(pc.Color, role)

	ringMat := scene.NewMaterial(col)
	ringMat.Emissive = true
	ring := scene.NewMesh("ring", scene.KindMesh, torusGeometry(r, r*RingTubeRatio, RingRadialSegs, RingTubularSegs), ringMat)

	diskMat := scene.NewMaterial(col)
	diskMat.Transparent = true
	diskMat.Opacity = DiskOpacity
	diskMat.DoubleSided = true
	disk := scene.NewMesh("disk", scene.KindMesh, circleGeometry(r*DiskRadiusRatio, DiskSegments), diskMat)

	partMat := scene.NewMaterial(color.RGBA{255, 255, 255, 255})
	partMat.VertexColors = true
	partMat.Transparent = true
	partMat.Opacity = 0.6
	partMat.PointSize = 0.2
	particles := scene.NewMesh("particles", scene.KindPoints, haloGeometry(r, ParticleCount, role, rng), partMat)

	inner := scene.NewGroup("portal-inner")
	inner.Add(ring)
	inner.Add(disk)
	inner.Add(particles)

	pv := &PortalVisual{
		Role:      role,
		Config:    pc,
		Inner:     inner,
		Ring:      ring,
		Disk:      disk,
		Particles: particles,
	}

	if pc.Label != "" {
		pv.Label = buildLabel(pc.Label, col, r, labels)
		if pv.Label != nil {
			inner.Add(pv.Label)
		}
	}

	box := inner.WorldBox()
	if !box.IsEmpty() {
		inner.Pose.Pos.Y = -box.Min.Y
	}

	wrapper := scene.NewGroup(role.String() + "-portal")
	wrapper.Pose.Pos = pc.Position
	wrapper.Pose.SetEulerRotation(pc.LookAt)
	wrapper.Add(inner)
	pv.Root = wrapper
	return pv
}

func buildLabel(text string, col color.RGBA, r float32, labels LabelRasterizer) *scene.Node {
	if labels == nil {
		log.Printf("⚠️ No label rasterizer available, portal label %q omitted", text)
		return nil
	}
	img, err := labels.RasterizeLabel(text, col, LabelTextureWidth, LabelTextureHeight)
	if err != nil {
		log.Printf("⚠️ Failed to draw portal label %q: %v", text, err)
		return nil
	}

	mat := scene.NewMaterial(color.RGBA{255, 255, 255, 255})
	mat.Texture = img
	mat.Transparent = true
	mat.DoubleSided = true

	label := scene.NewMesh("label", scene.KindMesh, planeGeometry(r*LabelWidthRatio, r/LabelHeightDivisor), mat)
	label.Pose.Pos.Y = r * LabelLiftRatio
	label.Billboard = true
	return label
}

// parseColor accepts #rgb and #rrggbb. Anything else falls back to the
// role's stock color.
func parseColor(hex string, role Role) color.RGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		fallback := DefaultEnterColor
		if role == RoleExit {
			fallback = DefaultExitColor
		}
		log.Printf("⚠️ Invalid portal color %q, using %s", hex, fallback)
		c, _ = colorful.Hex(fallback)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// WarpVisual is the tunnel of streaking lines shown during a warp.
type WarpVisual struct {
	Config     WarpConfig
	Node       *scene.Node
	Velocities []math32.Vector3 // only Z is used
	Offsets    []float32        // per-line oscillation phase in [0, 2pi)
	StartTime  time.Time
}

// BuildWarpVisual lays out cfg.LineCount lines of cfg.PointsPerLine points
// evenly around the tunnel axis. The result starts hidden.
func BuildWarpVisual(cfg WarpConfig, rng *rand.Rand, now time.Time) *WarpVisual {
	n := cfg.LineCount * cfg.PointsPerLine
	g := scene.NewGeometry(n)
	if cfg.PointsPerLine > 1 {
		g.Indices = make([]uint32, 0, cfg.LineCount*(cfg.PointsPerLine-1)*2)
	}

	wv := &WarpVisual{
		Config:     cfg,
		Velocities: make([]math32.Vector3, cfg.LineCount),
		Offsets:    make([]float32, cfg.LineCount),
		StartTime:  now,
	}

	for i := 0; i < cfg.LineCount; i++ {
		base := i * cfg.PointsPerLine
		for j := 0; j < cfg.PointsPerLine; j++ {
			g.SetPosition(base+j, cfg.linePoint(i, j, 0))
			c := cfg.pointIntensity(j)
			g.SetColor(base+j, c, c, 1)
			if j > 0 {
				g.Indices = append(g.Indices, uint32(base+j-1), uint32(base+j))
			}
		}
		wv.Velocities[i] = math32.Vec3(0, 0, cfg.MinSpeed+rng.Float32()*cfg.SpeedVariation)
		wv.Offsets[i] = rng.Float32() * math32.Pi * 2
	}

	mat := scene.NewMaterial(color.RGBA{255, 255, 255, 255})
	mat.VertexColors = true
	mat.Transparent = true

	wv.Node = scene.NewMesh("warp-tunnel", scene.KindLineSegments, g, mat)
	wv.Node.Visible = false
	return wv
}

// Geometry returns the line buffers.
func (wv *WarpVisual) Geometry() *scene.Geometry {
	return wv.Node.Geometry
}

// linePoint is the layout position of point j on line i, shifted along
// the tunnel axis by dz.
func (cfg WarpConfig) linePoint(i, j int, dz float32) math32.Vector3 {
	theta := float32(i) / float32(cfg.LineCount) * math32.Pi * 2
	r := cfg.TunnelRadius + float32(j)*cfg.TunnelExpansion
	return math32.Vec3(math32.Cos(theta)*r, math32.Sin(theta)*r, float32(j)*cfg.LineLength+dz)
}

// pointIntensity fades from 1 at the head of a line to 0.1 at its tail.
func (cfg WarpConfig) pointIntensity(j int) float32 {
	if cfg.PointsPerLine < 2 {
		return 1
	}
	return 1 - float32(j)/float32(cfg.PointsPerLine-1)*0.9
}
