// Package host provides a headless stand-in for the browser page a portal
// instance is embedded in.
package host

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	WarmupTimeout  = 10 * time.Second
	MaxWarmupBytes = 4 << 20
	MaxNavigations = 32
)

// Frame is a hidden document registered on the page.
type Frame struct {
	ID      string    `json:"id"`
	Src     string    `json:"src"`
	Created time.Time `json:"created"`
	Warmed  bool      `json:"warmed"`
	Status  int       `json:"status,omitempty"`
}

// Navigation is one top-level navigation request.
type Navigation struct {
	Target string    `json:"target"`
	At     time.Time `json:"at"`
}

// Page tracks the location, the element registry and navigations of a
// single document. It is safe for concurrent use.
type Page struct {
	mu          sync.RWMutex
	location    *url.URL
	frames      map[string]*Frame
	navigations []Navigation

	client     *http.Client // nil disables warm-up fetches
	ctx        context.Context
	onNavigate func(target string)
	warmups    sync.WaitGroup
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithWarmup fetches every hidden frame's source once, the way a browser
// would load it.
func WithWarmup(client *http.Client) PageOption {
	return func(p *Page) {
		if client == nil {
			client = &http.Client{Timeout: WarmupTimeout}
		}
		p.client = client
	}
}

// WithContext bounds warm-up fetches.
func WithContext(ctx context.Context) PageOption {
	return func(p *Page) { p.ctx = ctx }
}

// OnNavigate registers fn to run after each navigation is recorded.
func OnNavigate(fn func(target string)) PageOption {
	return func(p *Page) { p.onNavigate = fn }
}

// NewPage opens a page at rawURL.
func NewPage(rawURL string, opts ...PageOption) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("host: parse page url: %w", err)
	}
	p := &Page{
		location: u,
		frames:   make(map[string]*Frame),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URL returns the current location.
func (p *Page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location.String()
}

func (p *Page) RawQuery() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location.RawQuery
}

// Navigate records target as the new location. A target that does not
// parse is still recorded but leaves the location unchanged.
func (p *Page) Navigate(target string) {
	p.mu.Lock()
	if u, err := p.location.Parse(target); err == nil {
		p.location = u
	} else {
		log.Printf("⚠️ Navigation target %q does not parse: %v", target, err)
	}
	p.navigations = append(p.navigations, Navigation{Target: target, At: time.Now()})
	if len(p.navigations) > MaxNavigations {
		p.navigations = p.navigations[len(p.navigations)-MaxNavigations:]
	}
	fn := p.onNavigate
	p.mu.Unlock()

	log.Printf("🌐 Navigating to %s", target)
	if fn != nil {
		fn(target)
	}
}

func (p *Page) HasElement(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.frames[id]
	return ok
}

// CreateHiddenFrame registers a frame. An id already present is replaced.
func (p *Page) CreateHiddenFrame(id, src string) {
	f := &Frame{ID: id, Src: src, Created: time.Now()}
	p.mu.Lock()
	p.frames[id] = f
	client := p.client
	p.mu.Unlock()

	log.Printf("🖼️ Hidden frame %q loading %s", id, src)
	if client != nil {
		p.warmups.Add(1)
		go p.warm(client, f)
	}
}

func (p *Page) warm(client *http.Client, f *Frame) {
	defer p.warmups.Done()

	status, err := fetchDiscard(p.ctx, client, f.Src)
	if err != nil {
		log.Printf("⚠️ Warm-up of %s failed: %v", f.Src, err)
	}

	p.mu.Lock()
	f.Warmed = err == nil
	f.Status = status
	p.mu.Unlock()
}

func fetchDiscard(ctx context.Context, client *http.Client, src string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, MaxWarmupBytes)); err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// WaitWarmups blocks until every started warm-up fetch has finished.
func (p *Page) WaitWarmups() {
	p.warmups.Wait()
}

// Frames returns copies of the registered frames.
func (p *Page) Frames() []Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Frame, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, *f)
	}
	return out
}

// Navigations returns the most recent navigations, oldest first.
func (p *Page) Navigations() []Navigation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Navigation(nil), p.navigations...)
}

// LastNavigation returns the most recent navigation target.
func (p *Page) LastNavigation() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.navigations) == 0 {
		return "", false
	}
	return p.navigations[len(p.navigations)-1].Target, true
}
