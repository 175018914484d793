// Package portal connects independent 3D experiences through walk-in
// portals.
//
// A Vibeverse instance owns two portals (a start portal leading back to the
// referring experience and an exit portal leading to the hub), a tunnel
// warp effect played while leaving, and an avatar swap queue. All methods
// must be called from the frame context of the host's frame.Loop; nothing
// here locks.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"vibeverse/internal/avatar"
	"vibeverse/internal/eventlog"
	"vibeverse/internal/frame"
	"vibeverse/internal/scene"
	"vibeverse/internal/telemetry"
)

var (
	ErrNilScene    = errors.New("portal: scene is required")
	ErrNotCamera   = errors.New("portal: camera is missing or not a camera node")
	ErrNilPlayer   = errors.New("portal: player is required")
	ErrNoScheduler = errors.New("portal: host scheduler is required")
	ErrNoPage      = errors.New("portal: host page is required")
	ErrNoLoader    = errors.New("portal: no asset loader configured")
)

// Host bundles what the embedding environment provides.
type Host struct {
	Scheduler frame.Scheduler
	Poster    avatar.Poster // where avatar results are applied; nil applies inline
	Page      Page
	Loader    avatar.Loader
	Labels    LabelRasterizer
	Events    eventlog.Sink
	Rand      *rand.Rand
	Clock     func() time.Time
	Context   context.Context
}

// Vibeverse is the integrator-facing handle.
type Vibeverse struct {
	cfg    Config
	scene  *scene.Node
	camera *scene.Node
	player *scene.Node
	host   Host
	query  Query

	animator *Animator
	warp     *WarpController
	nav      *Navigator
	collider CollisionDetector
	avatars  *avatar.Queue

	exit  *PortalVisual
	start *PortalVisual
	hud   *HUD

	localSubs  subscribers
	remoteSubs subscribers
}

// New validates the scene handles, resolves opts and reads the page query
// once. An avatar query parameter starts a swap of the player's avatar.
func New(sc, camera, player *scene.Node, opts Options, host Host) (*Vibeverse, error) {
	switch {
	case sc == nil:
		return nil, ErrNilScene
	case camera == nil || camera.Kind != scene.KindCamera:
		return nil, ErrNotCamera
	case player == nil:
		return nil, ErrNilPlayer
	case host.Scheduler == nil:
		return nil, ErrNoScheduler
	case host.Page == nil:
		return nil, ErrNoPage
	}
	if host.Rand == nil {
		host.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if host.Clock == nil {
		host.Clock = time.Now
	}
	if host.Context == nil {
		host.Context = context.Background()
	}
	if host.Loader == nil {
		host.Loader = missingLoader{}
	}

	v := &Vibeverse{
		cfg:    Resolve(opts),
		scene:  sc,
		camera: camera,
		player: player,
		host:   host,
		query:  ParseQuery(host.Page.RawQuery()),
	}
	v.animator = NewAnimator(host.Scheduler)
	v.warp = NewWarpController(v.cfg.Warp, sc, camera, host.Scheduler, host.Rand, host.Clock, host.Events)
	v.nav = NewNavigator(&v.cfg, host.Page, v.query, v.warp, host.Events)
	v.avatars = avatar.NewQueue(host.Context, v.cfg.Avatar, avatar.QueueDeps{
		Loader: host.Loader,
		Poster: host.Poster,
		Local:  player,
		Notify: v.avatarChanged,
		Events: host.Events,
	})

	if src, ok := v.query.Get("avatar"); ok && src != "" {
		log.Printf("🧍 Loading avatar %q from page URL", src)
		v.avatars.Enqueue(player, src)
	}
	return v, nil
}

type missingLoader struct{}

func (missingLoader) Load(context.Context, string) (*scene.Node, error) {
	return nil, ErrNoLoader
}

// Config returns the resolved configuration.
func (v *Vibeverse) Config() *Config { return &v.cfg }

// IsVibeverse reports whether the page was reached through a portal.
func (v *Vibeverse) IsVibeverse() bool { return v.query.Has("ref") }

// CreateInGamePortals adds the exit portal and, when the page was reached
// through a portal, the start portal to the scene. Repeated calls return
// the portals created the first time.
func (v *Vibeverse) CreateInGamePortals() (exit, start *PortalVisual) {
	if v.exit != nil {
		return v.exit, v.start
	}

	v.exit = BuildPortalVisual(v.cfg.Exit, RoleExit, v.host.Labels, v.host.Rand)
	v.addPortal(v.exit, v.nav.EnterExitPortal)

	if v.IsVibeverse() {
		v.start = BuildPortalVisual(v.cfg.Enter, RoleEntrance, v.host.Labels, v.host.Rand)
		v.addPortal(v.start, func() { v.nav.EnterStartPortal() })
	}
	return v.exit, v.start
}

func (v *Vibeverse) addPortal(pv *PortalVisual, enter func()) {
	v.scene.Add(pv.Root)
	v.animator.Add(pv)
	v.collider.Watch(pv, func() {
		v.portalEntered(pv)
		enter()
	})
	log.Printf("🌀 %s portal created at (%.1f, %.1f, %.1f)", pv.Role, pv.Config.Position.X, pv.Config.Position.Y, pv.Config.Position.Z)
}

func (v *Vibeverse) portalEntered(pv *PortalVisual) {
	telemetry.RecordPortalEntry(pv.Role.String())
	if v.host.Events == nil {
		return
	}
	pos := v.player.WorldPosition()
	box, _ := CollisionVolume(pv)
	v.host.Events.EmitSimple(eventlog.EventTypePortalEnter, pv.Role.String(), eventlog.PortalEnterPayload{
		Role:    pv.Role.String(),
		PlayerX: pos.X,
		PlayerY: pos.Y,
		PlayerZ: pos.Z,
		Box:     [6]float32{box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z},
	})
}

// Portals returns the in-game portals created so far.
func (v *Vibeverse) Portals() (exit, start *PortalVisual) {
	return v.exit, v.start
}

// CreateHUDPortals returns the HUD view, creating it on first use.
func (v *Vibeverse) CreateHUDPortals() *HUD {
	if v.hud == nil {
		v.hud = NewHUD(&v.cfg)
	}
	return v.hud
}

// Update runs one collision pass for the player.
func (v *Vibeverse) Update() {
	v.collider.Check(v.player)
}

// SwapAvatar replaces the avatar on rig with the asset at src, a URL or a
// vibatar username. The channel reports the outcome.
func (v *Vibeverse) SwapAvatar(rig *scene.Node, src string) <-chan error {
	if rig == nil {
		done := make(chan error, 1)
		done <- fmt.Errorf("portal: swap avatar %q: %w", src, ErrNilPlayer)
		close(done)
		return done
	}
	return v.avatars.Enqueue(rig, src)
}

// AvatarStats reports the swap queue counters.
func (v *Vibeverse) AvatarStats() avatar.QueueStats {
	return v.avatars.Stats()
}

// OnLocalAvatarChanged subscribes fn to swaps on the player's own rig.
// The returned function unsubscribes.
func (v *Vibeverse) OnLocalAvatarChanged(fn AvatarChangedFunc) func() {
	return v.localSubs.add(fn)
}

// OnRemoteAvatarChanged subscribes fn to swaps on any other rig.
func (v *Vibeverse) OnRemoteAvatarChanged(fn AvatarChangedFunc) func() {
	return v.remoteSubs.add(fn)
}

func (v *Vibeverse) avatarChanged(c avatar.Change) {
	if c.Local {
		v.localSubs.notify(c)
		return
	}
	v.remoteSubs.notify(c)
}

// StartWarp plays the tunnel without navigating.
func (v *Vibeverse) StartWarp() { v.warp.Start() }

// StopWarp hides the tunnel.
func (v *Vibeverse) StopWarp() { v.warp.Stop() }

// Warp exposes the controller for inspection.
func (v *Vibeverse) Warp() *WarpController { return v.warp }

// Navigator exposes the computed portal targets.
func (v *Vibeverse) Navigator() *Navigator { return v.nav }
