package portal

import (
	"cogentcore.org/core/math32"

	"vibeverse/internal/scene"
)

// CollisionMargin grows every portal volume before the containment test.
const CollisionMargin = 1.5

// CollisionVolume recomputes the expanded world box of pv from its live
// subtree. Portals may be moved by the host at any time, so nothing is
// cached.
func CollisionVolume(pv *PortalVisual) (math32.Box3, bool) {
	if pv == nil || pv.Root == nil {
		return math32.Box3{}, false
	}
	box := pv.Root.WorldBox()
	if box.IsEmpty() {
		return box, false
	}
	box.ExpandByScalar(CollisionMargin)
	return box, true
}

type collisionTarget struct {
	visual  *PortalVisual
	onEnter func()
}

// CollisionDetector tests the player against every registered portal.
// A player standing inside a volume triggers its handler on every check.
type CollisionDetector struct {
	targets []collisionTarget
}

// Watch registers pv with the handler to call on entry.
func (c *CollisionDetector) Watch(pv *PortalVisual, onEnter func()) {
	if pv == nil {
		return
	}
	c.targets = append(c.targets, collisionTarget{visual: pv, onEnter: onEnter})
}

// Check runs one pass for the player's world position and returns the
// portals that were entered.
func (c *CollisionDetector) Check(player *scene.Node) []*PortalVisual {
	if player == nil {
		return nil
	}
	pos := player.WorldPosition()

	var hits []*PortalVisual
	for _, t := range c.targets {
		box, ok := CollisionVolume(t.visual)
		if !ok || !box.ContainsPoint(pos) {
			continue
		}
		hits = append(hits, t.visual)
		if t.onEnter != nil {
			t.onEnter()
		}
	}
	return hits
}
