package portal

import (
	"log"
	"strings"

	"vibeverse/internal/eventlog"
	"vibeverse/internal/telemetry"
)

// PreloadFrameID identifies the hidden frame that warms the hub's cache.
const PreloadFrameID = "preloadFrame"

// Page is the browsing context the library is embedded in.
type Page interface {
	// RawQuery returns the current query string without the '?'.
	RawQuery() string
	// Navigate replaces the current document with target.
	Navigate(target string)
	HasElement(id string) bool
	// CreateHiddenFrame adds an invisible frame loading src.
	CreateHiddenFrame(id, src string)
}

// Navigator turns portal entries into top-level navigations.
type Navigator struct {
	cfg    *Config
	page   Page
	query  Query
	warp   *WarpController
	events eventlog.Sink
}

// NewNavigator captures query once; later changes to the page URL are not
// observed.
func NewNavigator(cfg *Config, page Page, query Query, warp *WarpController, events eventlog.Sink) *Navigator {
	return &Navigator{cfg: cfg, page: page, query: query, warp: warp, events: events}
}

// Referrer returns the experience to return to, taken from the ref
// parameter and given an https scheme when it has none.
func (n *Navigator) Referrer() (string, bool) {
	ref, ok := n.query.Get("ref")
	if !ok || ref == "" {
		return "", false
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		ref = "https://" + ref
	}
	return ref, true
}

// StartPortalTarget is where the start portal leads: the referrer with
// every current parameter except ref. When no parameter remains the
// referrer is returned without a trailing '?'.
func (n *Navigator) StartPortalTarget() (string, bool) {
	ref, ok := n.Referrer()
	if !ok {
		return "", false
	}
	rest := n.query.Without("ref").Encode()
	if rest == "" {
		return ref, true
	}
	return ref + "?" + rest, true
}

// ExitPortalTarget is the hub URL with portal=true, the username, a white
// color and then every current parameter that is not already set.
func (n *Navigator) ExitPortalTarget() string {
	q := Query{{Key: "portal", Value: "true"}}
	if n.cfg.Username != "" {
		q = append(q, Param{Key: "username", Value: n.cfg.Username})
	}
	q = append(q, Param{Key: "color", Value: "white"})
	for _, p := range n.query {
		q = q.SetDefault(p.Key, p.Value)
	}
	return n.cfg.HubURL + "?" + q.Encode()
}

// EnterStartPortal navigates back to the referrer. It returns false and
// does nothing when the page was not reached through a portal.
func (n *Navigator) EnterStartPortal() bool {
	target, ok := n.StartPortalTarget()
	if !ok {
		return false
	}
	n.depart(RoleEntrance, target)
	return true
}

// EnterExitPortal preloads the hub in a hidden frame, unless one exists,
// and navigates to it.
func (n *Navigator) EnterExitPortal() {
	target := n.ExitPortalTarget()
	if !n.page.HasElement(PreloadFrameID) {
		n.page.CreateHiddenFrame(PreloadFrameID, target)
	}
	n.depart(RoleExit, target)
}

func (n *Navigator) depart(role Role, target string) {
	if n.warp != nil {
		n.warp.Start()
	}
	log.Printf("🚪 %s portal entered, navigating to %s", role, target)
	telemetry.RecordNavigation(role.String())
	if n.events != nil {
		n.events.EmitSimple(eventlog.EventTypeNavigate, role.String(), eventlog.NavigatePayload{Role: role.String(), Target: target})
	}
	n.page.Navigate(target)
}
