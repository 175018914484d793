// Package session wires a portal instance into a headless host: a scene
// with a camera and a player rig, a frame loop, a page and an asset
// loader. It is the composition root used by cmd/server.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"cogentcore.org/core/math32"

	"vibeverse/internal/asset"
	"vibeverse/internal/avatar"
	"vibeverse/internal/eventlog"
	"vibeverse/internal/frame"
	"vibeverse/internal/host"
	"vibeverse/internal/portal"
	"vibeverse/internal/render"
	"vibeverse/internal/scene"
)

const (
	DefaultPageURL = "http://localhost:3000/"
	LocalRig       = "player"

	CameraHeight   = 5
	CameraDistance = 12

	// placeholder body the first avatar is fitted to
	PlayerWidth  = 1
	PlayerHeight = 2
)

var (
	ErrNoPortal = errors.New("session: no portal with that role")
	ErrNoLabel  = errors.New("session: portal has no label texture")
)

// Config holds everything needed to build a session.
type Config struct {
	FPS            int
	PageURL        string
	PreloadFetch   bool
	FontPath       string
	AssetCacheSize int
	Seed           int64 // 0 seeds from the clock
	Options        portal.Options
}

// Session owns one scene and the portal instance attached to it. Reads go
// through Snapshot; every mutation is executed on the frame loop.
type Session struct {
	cfg    Config
	loop   *frame.Loop
	page   *host.Page
	loader *asset.Loader
	labels *render.LabelRasterizer

	scene  *scene.Node
	camera *scene.Node
	player *scene.Node
	vv     *portal.Vibeverse
	hud    *portal.HUD

	remotes map[string]*scene.Node // frame-owned
	frames  uint64

	seq      atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
	changes  atomic.Uint64
	running  atomic.Bool
}

// New builds the scene and the portal instance. The frame loop is not
// started; call Start, or Step in tests.
func New(ctx context.Context, cfg Config, events eventlog.Sink) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.PageURL == "" {
		cfg.PageURL = DefaultPageURL
	}

	s := &Session{
		cfg:     cfg,
		loop:    frame.NewLoop(cfg.FPS),
		loader:  asset.NewLoader(nil, cfg.AssetCacheSize),
		labels:  render.NewLabelRasterizer(cfg.FontPath),
		remotes: make(map[string]*scene.Node),
	}

	pageOpts := []host.PageOption{host.WithContext(ctx)}
	if cfg.PreloadFetch {
		pageOpts = append(pageOpts, host.WithWarmup(&http.Client{Timeout: host.WarmupTimeout}))
	}
	page, err := host.NewPage(cfg.PageURL, pageOpts...)
	if err != nil {
		return nil, err
	}
	s.page = page

	s.scene = scene.New()
	s.camera = scene.NewCamera("camera")
	s.player = newRig(LocalRig)
	s.scene.Add(s.camera)
	s.scene.Add(s.player)
	s.followPlayer()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	vv, err := portal.New(s.scene, s.camera, s.player, cfg.Options, portal.Host{
		Scheduler: s.loop,
		Poster:    s.loop,
		Page:      page,
		Loader:    s.loader,
		Labels:    s.labels,
		Events:    events,
		Rand:      rand.New(rand.NewSource(seed)),
		Context:   ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.vv = vv

	s.loop.Do(func() {
		vv.CreateInGamePortals()
		s.hud = vv.CreateHUDPortals()
		vv.OnLocalAvatarChanged(s.avatarChanged)
		vv.OnRemoteAvatarChanged(s.avatarChanged)
		s.publish(time.Now())
	})
	s.loop.RequestFrame(s.frame)
	s.loop.OnFrameEnd(s.publish)

	log.Printf("🌌 Session ready at %s (vibeverse=%v)", page.URL(), vv.IsVibeverse())
	return s, nil
}

func newRig(name string) *scene.Node {
	body := scene.NewMesh("placeholder", scene.KindMesh, &scene.Geometry{
		Bounds: &math32.Box3{
			Min: math32.Vec3(-PlayerWidth/2.0, 0, -PlayerWidth/2.0),
			Max: math32.Vec3(PlayerWidth/2.0, PlayerHeight, PlayerWidth/2.0),
		},
	}, scene.NewMaterial(whiteRGBA))
	rig := scene.NewGroup(name)
	rig.Add(body)
	return rig
}

// Start runs the frame loop in the background.
func (s *Session) Start() {
	if s.running.Swap(true) {
		return
	}
	s.loop.Start()
}

// Stop halts the frame loop.
func (s *Session) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.loop.Stop()
}

// Step runs one frame. It is meant for tests and tools driving the
// session manually.
func (s *Session) Step(now time.Time) {
	s.loop.Step(now)
}

func (s *Session) frame(now time.Time) {
	s.frames++
	if !s.vv.Warp().Warping() {
		s.followPlayer()
	}
	s.vv.Update()
	s.loop.RequestFrame(s.frame)
}

func (s *Session) followPlayer() {
	p := s.player.WorldPosition()
	s.camera.Pose.Pos = math32.Vec3(p.X, p.Y+CameraHeight, p.Z+CameraDistance)
}

func (s *Session) avatarChanged(c avatar.Change) {
	s.changes.Add(1)
	log.Printf("🧍 Avatar of %q is now %s", c.Rig.Name, c.URL)
}

// Instance returns the portal instance. Its methods must only be called
// inside Do.
func (s *Session) Instance() *portal.Vibeverse {
	return s.vv
}

// Page returns the host page.
func (s *Session) Page() *host.Page {
	return s.page
}

// Do runs fn on the frame loop between frames.
func (s *Session) Do(fn func()) {
	s.loop.Do(fn)
}

// MovePlayer places the player at pos, or moves it by pos when relative
// is set. The collision pass runs on the next frame.
func (s *Session) MovePlayer(pos math32.Vector3, relative bool) math32.Vector3 {
	var out math32.Vector3
	s.loop.Do(func() {
		if relative {
			pos = s.player.Pose.Pos.Add(pos)
		}
		s.player.Pose.Pos = pos
		out = pos
		s.publish(time.Now())
	})
	return out
}

// SwapAvatar loads src onto the named rig. An empty name or LocalRig is
// the player; any other name addresses a remote rig, created on first use.
func (s *Session) SwapAvatar(rigName, src string) <-chan error {
	var done <-chan error
	s.loop.Do(func() {
		rig := s.player
		if rigName != "" && rigName != LocalRig {
			rig = s.remoteRig(rigName)
		}
		done = s.vv.SwapAvatar(rig, src)
	})
	return done
}

func (s *Session) remoteRig(name string) *scene.Node {
	if rig, ok := s.remotes[name]; ok {
		return rig
	}
	rig := newRig(name)
	s.remotes[name] = rig
	s.scene.Add(rig)
	return rig
}

// StartWarp plays the tunnel without navigating.
func (s *Session) StartWarp() {
	s.loop.Do(func() {
		s.vv.StartWarp()
		s.publish(time.Now())
	})
}

// StopWarp hides the tunnel.
func (s *Session) StopWarp() {
	s.loop.Do(func() {
		s.vv.StopWarp()
		s.publish(time.Now())
	})
}

// SetHUDVisible shows or hides the HUD link.
func (s *Session) SetHUDVisible(visible bool) {
	s.loop.Do(func() {
		if visible {
			s.hud.Show()
		} else {
			s.hud.Hide()
		}
		s.publish(time.Now())
	})
}

// RenderHUD writes the HUD markup.
func (s *Session) RenderHUD(w io.Writer) error {
	var err error
	s.loop.Do(func() {
		err = s.hud.Render(w)
	})
	return err
}

// LabelImage returns the label texture of the portal with the given role.
func (s *Session) LabelImage(role string) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	s.loop.Do(func() {
		pv := s.portal(role)
		switch {
		case pv == nil:
			err = fmt.Errorf("%w: %q", ErrNoPortal, role)
		case pv.Label == nil || pv.Label.Material == nil || pv.Label.Material.Texture == nil:
			err = fmt.Errorf("%w: %s", ErrNoLabel, role)
		default:
			img = pv.Label.Material.Texture
		}
	})
	return img, err
}

func (s *Session) portal(role string) *portal.PortalVisual {
	exit, start := s.vv.Portals()
	switch role {
	case portal.RoleExit.String():
		return exit
	case portal.RoleEntrance.String():
		return start
	}
	return nil
}

// Preview draws the latest snapshot from above.
func (s *Session) Preview(width, height int) image.Image {
	return render.DrawPreview(s.Snapshot().Preview(), width, height)
}
