package session

import (
	"image/color"
	"sort"
	"time"

	"cogentcore.org/core/math32"

	"vibeverse/internal/avatar"
	"vibeverse/internal/host"
	"vibeverse/internal/portal"
	"vibeverse/internal/render"
)

var whiteRGBA = color.RGBA{255, 255, 255, 255}

// Vec3 is a JSON-friendly vector.
type Vec3 [3]float32

func vec3(v math32.Vector3) Vec3 { return Vec3{v.X, v.Y, v.Z} }

// PortalSnapshot is an immutable view of one portal.
type PortalSnapshot struct {
	Role     string     `json:"role"`
	Label    string     `json:"label"`
	Color    string     `json:"color"`
	Position Vec3       `json:"position"`
	Yaw      float32    `json:"yaw"`
	Radius   float32    `json:"radius"`
	Volume   [2]Vec3    `json:"volume"` // collision box min, max
	Target   string     `json:"target"`
	HasLabel bool       `json:"hasLabel"`
	rgba     color.RGBA // for the preview
}

// WarpSnapshot is the tunnel state.
type WarpSnapshot struct {
	Enabled bool    `json:"enabled"`
	Active  bool    `json:"active"`
	Speed   float32 `json:"speed"`
}

// HUDSnapshot is the HUD state.
type HUDSnapshot struct {
	Visible bool   `json:"visible"`
	Link    string `json:"link"`
}

// Snapshot is an immutable copy of the session state, produced on the
// frame loop and read from any goroutine.
type Snapshot struct {
	Sequence      uint64            `json:"sequence"`
	Timestamp     time.Time         `json:"timestamp"`
	Frame         uint64            `json:"frame"`
	URL           string            `json:"url"`
	IsVibeverse   bool              `json:"isVibeverse"`
	Username      string            `json:"username"`
	Player        Vec3              `json:"player"`
	Camera        Vec3              `json:"camera"`
	Portals       []PortalSnapshot  `json:"portals"`
	Warp          WarpSnapshot      `json:"warp"`
	HUD           HUDSnapshot       `json:"hud"`
	Avatars       avatar.QueueStats `json:"avatars"`
	AvatarChanges uint64            `json:"avatarChanges"`
	Navigations   []host.Navigation `json:"navigations"`
	HiddenFrames  []host.Frame      `json:"hiddenFrames"`
	RemotePlayers []string          `json:"remotePlayers"`
}

// Snapshot returns the most recent snapshot. It never blocks on the frame
// loop.
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// publish must run on the frame loop. It is registered as the loop's
// frame-end hook, so it sees the state every callback left behind.
func (s *Session) publish(now time.Time) {
	cfg := s.vv.Config()
	snap := &Snapshot{
		Sequence:      s.seq.Add(1),
		Timestamp:     now,
		Frame:         s.frames,
		URL:           s.page.URL(),
		IsVibeverse:   s.vv.IsVibeverse(),
		Username:      cfg.Username,
		Player:        vec3(s.player.WorldPosition()),
		Camera:        vec3(s.camera.WorldPosition()),
		Avatars:       s.vv.AvatarStats(),
		AvatarChanges: s.changes.Load(),
		Navigations:   s.page.Navigations(),
		HiddenFrames:  s.page.Frames(),
	}

	nav := s.vv.Navigator()
	exit, start := s.vv.Portals()
	if exit != nil {
		snap.Portals = append(snap.Portals, portalSnapshot(exit, nav.ExitPortalTarget()))
	}
	if start != nil {
		target, _ := nav.StartPortalTarget()
		snap.Portals = append(snap.Portals, portalSnapshot(start, target))
	}

	w := s.vv.Warp()
	snap.Warp = WarpSnapshot{Enabled: w.Enabled(), Active: w.Warping(), Speed: w.Speed()}
	if s.hud != nil {
		snap.HUD = HUDSnapshot{Visible: s.hud.Visible(), Link: s.hud.Link()}
	}
	for name := range s.remotes {
		snap.RemotePlayers = append(snap.RemotePlayers, name)
	}
	sort.Strings(snap.RemotePlayers)

	s.snapshot.Store(snap)
}

func portalSnapshot(pv *portal.PortalVisual, target string) PortalSnapshot {
	ps := PortalSnapshot{
		Role:     pv.Role.String(),
		Label:    pv.Config.Label,
		Color:    pv.Config.Color,
		Position: vec3(pv.Root.WorldPosition()),
		Yaw:      pv.Config.LookAt.Y,
		Radius:   pv.Config.Radius,
		Target:   target,
		HasLabel: pv.Label != nil,
		rgba:     whiteRGBA,
	}
	if box, ok := portal.CollisionVolume(pv); ok {
		ps.Volume = [2]Vec3{vec3(box.Min), vec3(box.Max)}
	}
	if pv.Ring != nil && pv.Ring.Material != nil {
		ps.rgba = pv.Ring.Material.Color
	}
	return ps
}

// Preview converts the snapshot into the top-down drawing input.
func (snap *Snapshot) Preview() render.Preview {
	p := render.Preview{
		PlayerX: snap.Player[0],
		PlayerZ: snap.Player[2],
		CameraX: snap.Camera[0],
		CameraZ: snap.Camera[2],
		Warping: snap.Warp.Active,
	}
	for _, ps := range snap.Portals {
		p.Portals = append(p.Portals, render.Marker{
			X:      ps.Position[0],
			Z:      ps.Position[2],
			Radius: ps.Radius,
			Yaw:    ps.Yaw,
			Color:  ps.rgba,
			Label:  ps.Label,
		})
	}
	return p
}
