// Package config provides centralized configuration management for the
// portal server.
//
// Every section has a Default* constructor and a *FromEnv variant applying
// environment overrides. Portal options that do not fit in environment
// variables live in an optional TOML file (PORTAL_OPTIONS_FILE).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"vibeverse/internal/avatar"
	"vibeverse/internal/portal"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	DisableDebug bool     // DISABLE_DEBUG_SERVER=true turns off pprof/metrics listener
	CORSOrigins  []string // nil keeps the API defaults
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DisableDebug = true
	}
	if origins := getEnvList("CORS_ORIGINS"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}

	return cfg
}

// =============================================================================
// FRAME LOOP CONFIGURATION
// =============================================================================

// FrameConfig controls the host frame loop.
type FrameConfig struct {
	FPS int // Frames per second; portal animation speeds are per frame
}

// DefaultFrame returns the default frame configuration.
func DefaultFrame() FrameConfig {
	return FrameConfig{FPS: 60}
}

// FrameFromEnv returns frame configuration with environment variable overrides.
func FrameFromEnv() FrameConfig {
	cfg := DefaultFrame()
	if fps := getEnvInt("FRAME_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	return cfg
}

// =============================================================================
// PAGE CONFIGURATION
// =============================================================================

// PageConfig describes the headless page the session runs in.
type PageConfig struct {
	URL          string // Including the query string portals read (ref, username, avatar...)
	PreloadFetch bool   // Fetch the hub once when the preload frame is created
}

// DefaultPage returns the default page configuration.
func DefaultPage() PageConfig {
	return PageConfig{
		URL: "http://localhost:3000/",
	}
}

// PageFromEnv returns page configuration with environment variable overrides.
func PageFromEnv() PageConfig {
	cfg := DefaultPage()
	if u := os.Getenv("PAGE_URL"); u != "" {
		cfg.URL = u
	}
	if os.Getenv("PRELOAD_FETCH") == "true" {
		cfg.PreloadFetch = true
	}
	return cfg
}

// =============================================================================
// PORTAL CONFIGURATION
// =============================================================================

// PortalConfig locates the portal options.
type PortalConfig struct {
	OptionsFile string // TOML file decoded into portal.Options
	Username    string // Overrides the file's username when set
}

// DefaultPortal returns the default portal configuration.
func DefaultPortal() PortalConfig {
	return PortalConfig{}
}

// PortalFromEnv returns portal configuration with environment variable overrides.
func PortalFromEnv() PortalConfig {
	cfg := DefaultPortal()
	cfg.OptionsFile = os.Getenv("PORTAL_OPTIONS_FILE")
	cfg.Username = os.Getenv("PORTAL_USERNAME")
	return cfg
}

// =============================================================================
// AVATAR CONFIGURATION
// =============================================================================

// AvatarConfig holds avatar loading settings.
type AvatarConfig struct {
	AllowedDomains []string // Empty keeps the portal options (or the vibatar default)
	MaxConcurrent  int      // 0 keeps the portal options
	CacheSize      int      // Parsed assets kept in memory
}

// DefaultAvatar returns the default avatar configuration.
func DefaultAvatar() AvatarConfig {
	return AvatarConfig{
		CacheSize: 64,
	}
}

// AvatarFromEnv returns avatar configuration with environment variable overrides.
func AvatarFromEnv() AvatarConfig {
	cfg := DefaultAvatar()
	cfg.AllowedDomains = getEnvList("AVATAR_DOMAINS")
	if n := getEnvInt("AVATAR_MAX_CONCURRENT", 0); n > 0 {
		cfg.MaxConcurrent = n
	}
	if n := getEnvInt("AVATAR_CACHE_SIZE", 0); n > 0 {
		cfg.CacheSize = n
	}
	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds 2D rasterization settings.
type RenderConfig struct {
	FontPath      string // Empty searches common system locations
	PreviewWidth  int
	PreviewHeight int
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		PreviewWidth:  640,
		PreviewHeight: 480,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()
	cfg.FontPath = os.Getenv("LABEL_FONT_PATH")
	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the JSONL event log.
type EventLogConfig struct {
	Path string // Empty disables the log
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{Path: "events.jsonl"}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.Path = p
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server   ServerConfig
	Frame    FrameConfig
	Page     PageConfig
	Portal   PortalConfig
	Avatar   AvatarConfig
	Render   RenderConfig
	EventLog EventLogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:   ServerFromEnv(),
		Frame:    FrameFromEnv(),
		Page:     PageFromEnv(),
		Portal:   PortalFromEnv(),
		Avatar:   AvatarFromEnv(),
		Render:   RenderFromEnv(),
		EventLog: EventLogFromEnv(),
	}
}

// PortalOptions reads the options file, if any, and applies the
// environment overrides on top of it.
func (c AppConfig) PortalOptions() (portal.Options, error) {
	var opts portal.Options
	if c.Portal.OptionsFile != "" {
		var err error
		opts, err = LoadPortalOptions(c.Portal.OptionsFile)
		if err != nil {
			return portal.Options{}, err
		}
	}

	if c.Portal.Username != "" {
		name := c.Portal.Username
		opts.Username = &name
	}
	if len(c.Avatar.AllowedDomains) > 0 || c.Avatar.MaxConcurrent > 0 {
		if opts.Avatar == nil {
			opts.Avatar = &avatar.Options{}
		}
		if len(c.Avatar.AllowedDomains) > 0 {
			opts.Avatar.AllowedDomains = c.Avatar.AllowedDomains
		}
		if c.Avatar.MaxConcurrent > 0 {
			n := c.Avatar.MaxConcurrent
			opts.Avatar.MaxConcurrent = &n
		}
	}
	return opts, nil
}

// LoadPortalOptions decodes a TOML options file. Unknown keys are errors.
func LoadPortalOptions(path string) (portal.Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return portal.Options{}, fmt.Errorf("config: open portal options: %w", err)
	}
	defer f.Close()

	var opts portal.Options
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return portal.Options{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return opts, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
