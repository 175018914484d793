package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/gorilla/websocket"

	"vibeverse/internal/api"
	"vibeverse/internal/avatar"
	"vibeverse/internal/session"
)

// ============================================================================
// Fake Implementations
// ============================================================================

// fakeSession implements api.SessionInterface without a frame loop.
type fakeSession struct {
	mu          sync.Mutex
	snap        *session.Snapshot
	player      math32.Vector3
	warping     bool
	hudVisible  bool
	swapErr     error
	swapPending bool
	swaps       []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		snap: &session.Snapshot{
			Sequence:    1,
			URL:         "http://localhost:3000/?ref=a.com",
			IsVibeverse: true,
			Portals: []session.PortalSnapshot{
				{Role: "exit", Label: "VIBEVERSE", Color: "#00ff00", HasLabel: true},
				{Role: "start", Label: "a.com", Color: "#ff0000", HasLabel: true},
			},
		},
	}
}

func (f *fakeSession) Snapshot() *session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) MovePlayer(pos math32.Vector3, relative bool) math32.Vector3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if relative {
		f.player = f.player.Add(pos)
	} else {
		f.player = pos
	}
	return f.player
}

func (f *fakeSession) SwapAvatar(rig, src string) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps = append(f.swaps, rig+"="+src)
	if f.swapPending {
		return make(chan error)
	}
	done := make(chan error, 1)
	done <- f.swapErr
	return done
}

func (f *fakeSession) StartWarp() {
	f.mu.Lock()
	f.warping = true
	f.mu.Unlock()
}

func (f *fakeSession) StopWarp() {
	f.mu.Lock()
	f.warping = false
	f.mu.Unlock()
}

func (f *fakeSession) SetHUDVisible(visible bool) {
	f.mu.Lock()
	f.hudVisible = visible
	f.mu.Unlock()
}

func (f *fakeSession) RenderHUD(w io.Writer) error {
	_, err := io.WriteString(w, "<html><body>hud</body></html>")
	return err
}

func (f *fakeSession) LabelImage(role string) (image.Image, error) {
	if role != "exit" {
		return nil, session.ErrNoPortal
	}
	return image.NewRGBA(image.Rect(0, 0, 512, 64)), nil
}

func (f *fakeSession) Preview(width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

type fakeEvents struct{}

func (fakeEvents) Stats() map[string]any {
	return map[string]any{"written": uint64(3), "dropped": uint64(0)}
}

func newTestServer(t *testing.T, sess api.SessionInterface) *httptest.Server {
	t.Helper()
	router := api.NewRouter(api.RouterConfig{
		Session:        sess,
		Events:         fakeEvents{},
		PreviewHeight:  100,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodePNG(t *testing.T, resp *http.Response) image.Image {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Expected image/png, got %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

// ============================================================================
// Router Tests
// ============================================================================

func TestRouterPurity(t *testing.T) {
	// Building routers must not start listeners or broadcast loops.
	for i := 0; i < 3; i++ {
		router := api.NewRouter(api.RouterConfig{
			Session:        newFakeSession(),
			DisableLogging: true,
		})
		if router == nil {
			t.Fatal("NewRouter returned nil")
		}
	}
}

func TestGetState(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.IsVibeverse {
		t.Error("Expected isVibeverse true")
	}
	if len(snap.Portals) != 2 {
		t.Errorf("Expected 2 portals, got %d", len(snap.Portals))
	}
}

func TestGetStateNotReady(t *testing.T) {
	sess := newFakeSession()
	sess.snap = nil
	ts := newTestServer(t, sess)

	for _, path := range []string{"/api/state", "/api/portals"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, resp.StatusCode)
		}
	}
}

func TestGetPortals(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	resp, err := http.Get(ts.URL + "/api/portals")
	if err != nil {
		t.Fatalf("GET /api/portals: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		IsVibeverse bool                     `json:"isVibeverse"`
		Portals     []session.PortalSnapshot `json:"portals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.IsVibeverse || len(body.Portals) != 2 {
		t.Errorf("Unexpected portals response: %+v", body)
	}
	if body.Portals[0].Role != "exit" {
		t.Errorf("Expected exit first, got %q", body.Portals[0].Role)
	}
}

func TestPlayerMove(t *testing.T) {
	sess := newFakeSession()
	ts := newTestServer(t, sess)

	resp := postJSON(t, ts.URL+"/api/player/move", map[string]interface{}{"x": 1, "y": 0, "z": 2})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/api/player/move", map[string]interface{}{"x": 1, "relative": true})
	defer resp.Body.Close()

	var body struct {
		Success  bool         `json:"success"`
		Position session.Vec3 `json:"position"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Error("Expected success")
	}
	if body.Position != (session.Vec3{2, 0, 2}) {
		t.Errorf("Expected position [2 0 2], got %v", body.Position)
	}
}

func TestPlayerMoveInvalidBody(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	resp, err := http.Post(ts.URL+"/api/player/move", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

// ============================================================================
// Avatar Tests
// ============================================================================

func TestAvatarSwapStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		pending bool
		wait    bool
		src     string
		want    int
	}{
		{name: "loaded", src: "https://models.example/a.glb", want: http.StatusOK},
		{name: "queued", pending: true, src: "https://models.example/a.glb", want: http.StatusAccepted},
		{name: "domain", err: fmt.Errorf("swap: %w", avatar.ErrDomainNotAllowed), src: "https://evil.example/a.glb", want: http.StatusForbidden},
		{name: "empty asset", err: avatar.ErrEmptyAsset, wait: true, src: "https://models.example/a.glb", want: http.StatusUnprocessableEntity},
		{name: "fetch failed", err: errors.New("404 Not Found"), wait: true, src: "https://models.example/a.glb", want: http.StatusBadGateway},
		{name: "missing src", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newFakeSession()
			sess.swapErr = tt.err
			sess.swapPending = tt.pending
			ts := newTestServer(t, sess)

			resp := postJSON(t, ts.URL+"/api/avatar", map[string]interface{}{
				"src":  tt.src,
				"wait": tt.wait,
			})
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestAvatarSwapRig(t *testing.T) {
	sess := newFakeSession()
	ts := newTestServer(t, sess)

	resp := postJSON(t, ts.URL+"/api/avatar", map[string]interface{}{
		"rig": "alice",
		"src": "levelsio",
	})
	resp.Body.Close()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.swaps) != 1 || sess.swaps[0] != "alice=levelsio" {
		t.Errorf("Unexpected swaps: %v", sess.swaps)
	}
}

// ============================================================================
// Image Tests
// ============================================================================

func TestPortalLabel(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	resp, err := http.Get(ts.URL + "/api/portals/exit/label.png")
	if err != nil {
		t.Fatalf("GET label: %v", err)
	}
	defer resp.Body.Close()
	img := decodePNG(t, resp)
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 64 {
		t.Errorf("Expected 512x64 label, got %v", b)
	}

	missing, err := http.Get(ts.URL + "/api/portals/nope/label.png")
	if err != nil {
		t.Fatalf("GET label: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown role, got %d", missing.StatusCode)
	}
}

func TestPreviewSize(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	tests := []struct {
		query      string
		wantWidth  int
		wantHeight int
	}{
		{"", api.DefaultPreviewWidth, 100},
		{"?w=320&h=240", 320, 240},
		{"?w=10", api.MinPreviewSize, 100},
		{"?w=99999&h=abc", api.MaxPreviewSize, 100},
	}

	for _, tt := range tests {
		resp, err := http.Get(ts.URL + "/api/preview.png" + tt.query)
		if err != nil {
			t.Fatalf("GET preview%s: %v", tt.query, err)
		}
		img := decodePNG(t, resp)
		resp.Body.Close()
		if b := img.Bounds(); b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
			t.Errorf("preview%s: expected %dx%d, got %v", tt.query, tt.wantWidth, tt.wantHeight, b)
		}
	}
}

// ============================================================================
// Control Tests
// ============================================================================

func TestWarpControl(t *testing.T) {
	sess := newFakeSession()
	ts := newTestServer(t, sess)

	resp := postJSON(t, ts.URL+"/api/warp/start", nil)
	resp.Body.Close()
	sess.mu.Lock()
	started := sess.warping
	sess.mu.Unlock()
	if !started {
		t.Error("Expected warp to be active after start")
	}

	resp = postJSON(t, ts.URL+"/api/warp/stop", nil)
	resp.Body.Close()
	sess.mu.Lock()
	stopped := !sess.warping
	sess.mu.Unlock()
	if !stopped {
		t.Error("Expected warp to be inactive after stop")
	}
}

func TestHUD(t *testing.T) {
	sess := newFakeSession()
	ts := newTestServer(t, sess)

	resp := postJSON(t, ts.URL+"/api/hud/show", nil)
	resp.Body.Close()
	sess.mu.Lock()
	visible := sess.hudVisible
	sess.mu.Unlock()
	if !visible {
		t.Error("Expected HUD visible")
	}

	page, err := http.Get(ts.URL + "/hud")
	if err != nil {
		t.Fatalf("GET /hud: %v", err)
	}
	defer page.Body.Close()
	if ct := page.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %q", ct)
	}
	body, _ := io.ReadAll(page.Body)
	if !strings.Contains(string(body), "hud") {
		t.Errorf("Unexpected HUD body: %s", body)
	}

	resp = postJSON(t, ts.URL+"/api/hud/hide", nil)
	resp.Body.Close()
	sess.mu.Lock()
	visible = sess.hudVisible
	sess.mu.Unlock()
	if visible {
		t.Error("Expected HUD hidden")
	}
}

func TestRootRedirectsToHUD(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/hud" {
		t.Errorf("Expected Location /hud, got %q", loc)
	}
}

func TestHealthAndEventStats(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("Unexpected health response: %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/api/events/stats")
	if err != nil {
		t.Fatalf("GET /api/events/stats: %v", err)
	}
	defer resp.Body.Close()
	var stats map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["written"] != 3 {
		t.Errorf("Expected written=3, got %v", stats["written"])
	}
}

func TestEventStatsDisabled(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Session:        newFakeSession(),
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without event log, got %d", resp.StatusCode)
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestCORS(t *testing.T) {
	ts := newTestServer(t, newFakeSession())

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://portal.pieter.com", "https://portal.pieter.com"},
		{"https://evil.example", ""},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/state", nil)
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET with origin %s: %v", tt.origin, err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: expected %q, got %q", tt.origin, tt.want, got)
		}
	}
}

func TestRateLimiting(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Session:         newFakeSession(),
		RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
		DisableLogging:  true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected burst of 2 to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", codes[2])
	}
}

func TestOriginMatcher(t *testing.T) {
	m := api.NewOriginMatcher(api.DefaultCORSOrigins)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"HTTP://LOCALHOST:8080", true},
		{"http://127.0.0.1:9000", true},
		{"https://portal.pieter.com", true},
		{"https://portal.pieter.com.evil", false},
		{"http://localhost", false},
		{"https://example.com", false},
	}

	for _, tt := range tests {
		if got := m.Allowed(tt.origin); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	if !api.NewOriginMatcher([]string{"*"}).Allowed("https://anything.example") {
		t.Error("Expected * to allow any origin")
	}
}

func TestWebSocketRateLimiter(t *testing.T) {
	l := api.NewWebSocketRateLimiter(2)

	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatal("Expected two slots")
	}
	if l.Allow("1.2.3.4") {
		t.Error("Expected third slot to be rejected")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("Expected other IP to have its own slots")
	}

	l.Release("1.2.3.4")
	if got := l.GetConnectionCount("1.2.3.4"); got != 1 {
		t.Errorf("Expected 1 connection after release, got %d", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "10.0.0.1:5555", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": " 3.3.3.3 "}, "10.0.0.1:5555", "3.3.3.3"},
		{"no port", nil, "10.0.0.2", "10.0.0.2"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		if got := api.GetClientIP(req); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

// ============================================================================
// Observability Tests
// ============================================================================

func TestDebugHandlerMetrics(t *testing.T) {
	// One request through the router so the HTTP metrics have samples.
	ts := newTestServer(t, newFakeSession())
	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	debug := httptest.NewServer(api.DebugHandler(api.ObservabilityConfig{}))
	defer debug.Close()

	resp, err = http.Get(debug.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `http_requests_total{endpoint="/api/state",method="GET",status="200"}`) {
		t.Error("Expected http_requests_total sample for /api/state")
	}
}

func TestDebugHandlerBasicAuth(t *testing.T) {
	debug := httptest.NewServer(api.DebugHandler(api.ObservabilityConfig{
		BasicAuthUser: "ops",
		BasicAuthPass: "secret",
	}))
	defer debug.Close()

	resp, err := http.Get(debug.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, debug.URL+"/health", nil)
	req.SetBasicAuth("ops", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", resp.StatusCode)
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

func TestWebSocketStreamsState(t *testing.T) {
	sess := newFakeSession()
	srv := api.NewServer(sess, api.ServerConfig{})
	go srv.Hub().Run()
	srv.Hub().StartBroadcastLoop(sess)
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg struct {
		Event string           `json:"event"`
		Data  session.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "session:state" {
		t.Errorf("Expected session:state, got %q", msg.Event)
	}
	if msg.Data.Sequence != 1 {
		t.Errorf("Expected sequence 1, got %d", msg.Data.Sequence)
	}
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	srv := api.NewServer(newFakeSession(), api.ServerConfig{})
	go srv.Hub().Run()
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 handshake response, got %v", resp)
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkGetState(b *testing.B) {
	router := api.NewRouter(api.RouterConfig{
		Session:         newFakeSession(),
		RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1e9, Burst: 1 << 30},
		DisableLogging:  true,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("Expected 200, got %d", rec.Code)
		}
	}
}
