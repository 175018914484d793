package portal

import (
	"math"
	"time"

	"vibeverse/internal/frame"
)

const (
	ShimmerRate      = 0.002 // radians per millisecond of wall clock
	ShimmerAmplitude = 0.3
)

// Animator makes the particle halos of every registered portal drift back
// and forth along the portal normal. Once the first portal is added it
// re-registers itself with the scheduler on every frame for good.
type Animator struct {
	sched   frame.Scheduler
	portals []*PortalVisual
	running bool
}

func NewAnimator(sched frame.Scheduler) *Animator {
	return &Animator{sched: sched}
}

// Add registers pv and starts the loop if it is not running yet.
func (a *Animator) Add(pv *PortalVisual) {
	if pv == nil {
		return
	}
	a.portals = append(a.portals, pv)
	if !a.running {
		a.running = true
		a.sched.RequestFrame(a.tick)
	}
}

func (a *Animator) tick(now time.Time) {
	Shimmer(a.portals, now)
	a.sched.RequestFrame(a.tick)
}

// Shimmer sets the depth of particle i to sin(ms*0.002 + i)*0.3.
func Shimmer(portals []*PortalVisual, now time.Time) {
	ms := float64(now.UnixNano()) / float64(time.Millisecond)
	for _, pv := range portals {
		if pv == nil || pv.Particles == nil || pv.Particles.Geometry == nil {
			continue
		}
		g := pv.Particles.Geometry
		for i := 0; i < g.VertexCount(); i++ {
			g.Positions[i*3+2] = float32(math.Sin(ms*ShimmerRate+float64(i)) * ShimmerAmplitude)
		}
		g.Touch()
	}
}
