// Package telemetry holds the domain metrics of the portal runtime.
// Label values are always drawn from small fixed sets.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vibeverse_frame_duration_seconds",
		Help:    "Time spent executing one host frame",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033},
	})

	portalEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibeverse_portal_entries_total",
		Help: "Player containment hits per portal role",
	}, []string{"role"}) // "entrance", "exit"

	navigations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibeverse_navigations_total",
		Help: "Top-level navigations issued",
	}, []string{"role"})

	warpActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vibeverse_warp_active",
		Help: "1 while the warp tunnel is animating",
	})

	warpTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibeverse_warp_ticks_total",
		Help: "Warp animation ticks executed",
	})

	warpLineResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibeverse_warp_line_resets_total",
		Help: "Tunnel lines recycled behind the camera",
	})

	avatarInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vibeverse_avatar_loads_in_flight",
		Help: "Avatar loads currently admitted",
	})

	avatarResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibeverse_avatar_loads_total",
		Help: "Avatar load outcomes",
	}, []string{"result"}) // "loaded", "rejected", "failed", "empty"
)

// RecordFrame records the duration of one frame.
func RecordFrame(d time.Duration) {
	frameDuration.Observe(d.Seconds())
}

// RecordPortalEntry counts a containment hit. role is "entrance" or "exit".
func RecordPortalEntry(role string) {
	portalEntries.WithLabelValues(role).Inc()
}

// RecordNavigation counts a navigation issued through a portal.
func RecordNavigation(role string) {
	navigations.WithLabelValues(role).Inc()
}

// SetWarpActive updates the warp gauge.
func SetWarpActive(active bool) {
	if active {
		warpActive.Set(1)
		return
	}
	warpActive.Set(0)
}

// RecordWarpTick counts one warp animation tick and its line resets.
func RecordWarpTick(resets int) {
	warpTicks.Inc()
	if resets > 0 {
		warpLineResets.Add(float64(resets))
	}
}

// SetAvatarInFlight updates the in-flight avatar gauge.
func SetAvatarInFlight(n int) {
	avatarInFlight.Set(float64(n))
}

// RecordAvatarResult counts an avatar task outcome.
func RecordAvatarResult(result string) {
	avatarResults.WithLabelValues(result).Inc()
}
