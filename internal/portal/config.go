package portal

import (
	"cogentcore.org/core/math32"

	"vibeverse/internal/avatar"
)

// HubURL is the well-known destination of the exit portal and the HUD link.
const HubURL = "https://portal.pieter.com"

const (
	DefaultRadius     = 15
	LayoutSpacing     = 2.5
	DefaultEnterColor = "#ff0000"
	DefaultExitColor  = "#00ff00"
	DefaultEnterLabel = "RETURN PORTAL"
	DefaultExitLabel  = "VIBEVERSE PORTAL"
)

// WarpConfig parameterizes the tunnel transition.
type WarpConfig struct {
	LineCount          int
	PointsPerLine      int
	TunnelRadius       float32
	TunnelExpansion    float32
	MinSpeed           float32
	SpeedVariation     float32
	OscillationSpeed   float32
	MinSpeedFactor     float32
	LineLength         float32
	ResetDistance      float32
	ResetOffset        float32
	CameraSpeed        float32
	CameraAcceleration float32
}

// DefaultWarpConfig returns the stock tunnel.
func DefaultWarpConfig() WarpConfig {
	return WarpConfig{
		LineCount:          60,
		PointsPerLine:      10,
		TunnelRadius:       10,
		TunnelExpansion:    0.5,
		MinSpeed:           0.5,
		SpeedVariation:     1.5,
		OscillationSpeed:   3,
		MinSpeedFactor:     0.3,
		LineLength:         5,
		ResetDistance:      100,
		ResetOffset:        100,
		CameraSpeed:        2,
		CameraAcceleration: 0.05,
	}
}

// PortalConfig is the resolved description of one portal.
type PortalConfig struct {
	Label    string
	Color    string
	Position math32.Vector3
	// LookAt holds the wrapper orientation as Euler angles in radians.
	LookAt math32.Vector3
	Radius float32
}

// Config is the fully resolved configuration. It is built once by Resolve
// and shared read-only by every component.
type Config struct {
	Username     string
	RootPosition math32.Vector3
	RootLookAt   math32.Vector3
	Warp         *WarpConfig // nil when the warp effect is disabled
	Avatar       avatar.Config
	Enter        PortalConfig
	Exit         PortalConfig
	HubURL       string
}

// WarpEnabled reports whether portal traversal plays the tunnel.
func (c *Config) WarpEnabled() bool {
	return c.Warp != nil
}

// WarpOptions overrides individual warp parameters. Disabled turns the
// effect off entirely; other fields are merged over the defaults.
type WarpOptions struct {
	Disabled           bool     `toml:"disabled"`
	LineCount          *int     `toml:"line_count"`
	PointsPerLine      *int     `toml:"points_per_line"`
	TunnelRadius       *float32 `toml:"tunnel_radius"`
	TunnelExpansion    *float32 `toml:"tunnel_expansion"`
	MinSpeed           *float32 `toml:"min_speed"`
	SpeedVariation     *float32 `toml:"speed_variation"`
	OscillationSpeed   *float32 `toml:"oscillation_speed"`
	MinSpeedFactor     *float32 `toml:"min_speed_factor"`
	LineLength         *float32 `toml:"line_length"`
	ResetDistance      *float32 `toml:"reset_distance"`
	ResetOffset        *float32 `toml:"reset_offset"`
	CameraSpeed        *float32 `toml:"camera_speed"`
	CameraAcceleration *float32 `toml:"camera_acceleration"`
}

// PortalOptions overrides one portal.
type PortalOptions struct {
	Label    *string         `toml:"label"`
	Color    *string         `toml:"color"`
	Position *math32.Vector3 `toml:"position"`
	LookAt   *math32.Vector3 `toml:"look_at"`
	Radius   *float32        `toml:"radius"`
}

// Options is what integrators pass in. Every field is optional.
type Options struct {
	Username *string         `toml:"username"`
	Position *math32.Vector3 `toml:"position"`
	LookAt   *math32.Vector3 `toml:"look_at"`
	Warp     *WarpOptions    `toml:"warp"`
	Avatar   *avatar.Options `toml:"avatar"`
	Enter    *PortalOptions  `toml:"enter"`
	Exit     *PortalOptions  `toml:"exit"`
}

// Resolve fills every omitted option with its default and lays out the two
// portals. It never fails.
//
// When neither portal supplies a position, both are placed symmetrically
// about the root position along the X axis, max(radius)*2.5 away, the
// entrance on the negative side. An explicit position on either portal
// turns this layout off for both.
func Resolve(opts Options) Config {
	cfg := Config{
		RootLookAt: math32.Vec3(0, math32.Pi, 0),
		Warp:       resolveWarp(opts.Warp),
		Avatar:     opts.Avatar.Resolve(),
		HubURL:     HubURL,
	}
	if opts.Username != nil {
		cfg.Username = *opts.Username
	}
	if opts.Position != nil {
		cfg.RootPosition = *opts.Position
	}
	if opts.LookAt != nil {
		cfg.RootLookAt = *opts.LookAt
	}

	cfg.Enter = resolvePortal(opts.Enter, cfg, DefaultEnterLabel, DefaultEnterColor)
	cfg.Exit = resolvePortal(opts.Exit, cfg, DefaultExitLabel, DefaultExitColor)

	if !hasPosition(opts.Enter) && !hasPosition(opts.Exit) {
		offset := math32.Max(cfg.Enter.Radius, cfg.Exit.Radius) * LayoutSpacing
		cfg.Enter.Position = cfg.RootPosition.Add(math32.Vec3(-offset, 0, 0))
		cfg.Exit.Position = cfg.RootPosition.Add(math32.Vec3(offset, 0, 0))
	}
	return cfg
}

func hasPosition(o *PortalOptions) bool {
	return o != nil && o.Position != nil
}

func resolvePortal(o *PortalOptions, root Config, label, color string) PortalConfig {
	pc := PortalConfig{
		Label:    label,
		Color:    color,
		Position: root.RootPosition,
		LookAt:   root.RootLookAt,
		Radius:   DefaultRadius,
	}
	if o == nil {
		return pc
	}
	if o.Label != nil {
		pc.Label = *o.Label
	}
	if o.Color != nil {
		pc.Color = *o.Color
	}
	if o.Position != nil {
		pc.Position = *o.Position
	}
	if o.LookAt != nil {
		pc.LookAt = *o.LookAt
	}
	if o.Radius != nil && *o.Radius > 0 {
		pc.Radius = *o.Radius
	}
	return pc
}

func resolveWarp(o *WarpOptions) *WarpConfig {
	w := DefaultWarpConfig()
	if o == nil {
		return &w
	}
	if o.Disabled {
		return nil
	}
	defaults := w
	setInt(&w.LineCount, o.LineCount)
	setInt(&w.PointsPerLine, o.PointsPerLine)
	if w.LineCount <= 0 {
		w.LineCount = defaults.LineCount
	}
	if w.PointsPerLine < 2 {
		w.PointsPerLine = defaults.PointsPerLine
	}
	setFloat(&w.TunnelRadius, o.TunnelRadius)
	setFloat(&w.TunnelExpansion, o.TunnelExpansion)
	setFloat(&w.MinSpeed, o.MinSpeed)
	setFloat(&w.SpeedVariation, o.SpeedVariation)
	setFloat(&w.OscillationSpeed, o.OscillationSpeed)
	setFloat(&w.MinSpeedFactor, o.MinSpeedFactor)
	setFloat(&w.LineLength, o.LineLength)
	setFloat(&w.ResetDistance, o.ResetDistance)
	setFloat(&w.ResetOffset, o.ResetOffset)
	setFloat(&w.CameraSpeed, o.CameraSpeed)
	setFloat(&w.CameraAcceleration, o.CameraAcceleration)
	return &w
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float32, v *float32) {
	if v != nil {
		*dst = *v
	}
}
