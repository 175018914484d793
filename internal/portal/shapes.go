package portal

import (
	"math/rand"

	"cogentcore.org/core/math32"
	"github.com/lucasb-eyer/go-colorful"

	"vibeverse/internal/scene"
)

const (
	RingTubeRatio      = 0.1
	RingRadialSegs     = 16
	RingTubularSegs    = 100
	DiskRadiusRatio    = 0.9
	DiskSegments       = 32
	DiskOpacity        = 0.5
	ParticleCount      = 500
	ParticleSpread     = 0.15 // full width of the annulus and depth band, in radii
	LabelLiftRatio     = 1.5  // label center sits this many radii above the ring center
	LabelWidthRatio    = 2
	LabelHeightDivisor = 3
	LabelTextureWidth  = 512
	LabelTextureHeight = 64

	entranceHue = 0   // red
	exitHue     = 120 // green
)

// torusGeometry lays a torus in the XY plane, facing +Z.
func torusGeometry(radius, tube float32, radialSegs, tubularSegs int) *scene.Geometry {
	n := (radialSegs + 1) * (tubularSegs + 1)
	g := scene.NewGeometry(n)
	g.Indices = make([]uint32, 0, radialSegs*tubularSegs*6)

	idx := 0
	for j := 0; j <= radialSegs; j++ {
		v := float32(j) / float32(radialSegs) * math32.Pi * 2
		for i := 0; i <= tubularSegs; i++ {
			u := float32(i) / float32(tubularSegs) * math32.Pi * 2
			g.SetPosition(idx, math32.Vec3(
				(radius+tube*math32.Cos(v))*math32.Cos(u),
				(radius+tube*math32.Cos(v))*math32.Sin(u),
				tube*math32.Sin(v),
			))
			idx++
		}
	}
	for j := 1; j <= radialSegs; j++ {
		for i := 1; i <= tubularSegs; i++ {
			a := uint32((tubularSegs+1)*j + i - 1)
			b := uint32((tubularSegs+1)*(j-1) + i - 1)
			c := uint32((tubularSegs+1)*(j-1) + i)
			d := uint32((tubularSegs+1)*j + i)
			g.Indices = append(g.Indices, a, b, d, b, c, d)
		}
	}
	return g
}

// circleGeometry is a triangle fan around the origin in the XY plane.
func circleGeometry(radius float32, segs int) *scene.Geometry {
	g := scene.NewGeometry(segs + 2)
	g.Indices = make([]uint32, 0, segs*3)
	for s := 0; s <= segs; s++ {
		a := float32(s) / float32(segs) * math32.Pi * 2
		g.SetPosition(s+1, math32.Vec3(radius*math32.Cos(a), radius*math32.Sin(a), 0))
	}
	for s := 1; s <= segs; s++ {
		g.Indices = append(g.Indices, uint32(s), uint32(s+1), 0)
	}
	return g
}

// planeGeometry is a width x height quad centered on the origin.
func planeGeometry(width, height float32) *scene.Geometry {
	hw, hh := width/2, height/2
	g := scene.NewGeometry(4)
	g.SetPosition(0, math32.Vec3(-hw, hh, 0))
	g.SetPosition(1, math32.Vec3(hw, hh, 0))
	g.SetPosition(2, math32.Vec3(-hw, -hh, 0))
	g.SetPosition(3, math32.Vec3(hw, -hh, 0))
	g.Indices = []uint32{0, 2, 1, 2, 3, 1}
	return g
}

// haloGeometry scatters count points in a thin annulus around radius.
// Entrance portals get shades of the red hue, exit portals of green.
func haloGeometry(radius float32, count int, role Role, rng *rand.Rand) *scene.Geometry {
	g := scene.NewGeometry(count)
	spread := radius * ParticleSpread
	hue := float64(entranceHue)
	if role == RoleExit {
		hue = exitHue
	}
	for i := 0; i < count; i++ {
		angle := rng.Float32() * math32.Pi * 2
		r := radius + (rng.Float32()-0.5)*spread
		g.SetPosition(i, math32.Vec3(
			math32.Cos(angle)*r,
			math32.Sin(angle)*r,
			(rng.Float32()-0.5)*spread,
		))
		c := colorful.Hsv(hue, 1, 0.8+rng.Float64()*0.2)
		g.SetColor(i, float32(c.R), float32(c.G), float32(c.B))
	}
	return g
}
