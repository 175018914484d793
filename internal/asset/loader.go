// Package asset fetches glTF/GLB models over HTTP and turns them into
// scene nodes.
package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/qmuntal/gltf"

	"vibeverse/internal/scene"
)

const (
	DefaultMaxAssets = 64
	AssetTTL         = 30 * time.Minute
	FetchTimeout     = 15 * time.Second
	MaxAssetBytes    = 32 << 20
)

// Loader downloads and parses assets, caching parsed documents with LRU
// eviction. Every Load returns a fresh node tree, so callers may reparent
// the result freely.
type Loader struct {
	mu      sync.RWMutex
	docs    map[string]*cachedDoc
	order   []string // LRU order (oldest first)
	maxSize int

	client *http.Client
}

type cachedDoc struct {
	doc       *gltf.Document
	fetchedAt time.Time
}

// NewLoader creates a loader. A nil client gets FetchTimeout.
func NewLoader(client *http.Client, maxSize int) *Loader {
	if maxSize <= 0 {
		maxSize = DefaultMaxAssets
	}
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &Loader{
		docs:    make(map[string]*cachedDoc),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		client:  client,
	}
}

// Load fetches url, or reuses a cached copy, and builds its scene.
func (l *Loader) Load(ctx context.Context, url string) (*scene.Node, error) {
	doc := l.cached(url)
	if doc == nil {
		var err error
		doc, err = l.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		l.store(url, doc)
	}
	return BuildScene(doc)
}

func (l *Loader) cached(url string) *gltf.Document {
	l.mu.RLock()
	c, ok := l.docs[url]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	if time.Since(c.fetchedAt) > AssetTTL {
		l.mu.Lock()
		l.remove(url)
		l.mu.Unlock()
		return nil
	}
	return c.doc
}

func (l *Loader) fetch(ctx context.Context, url string) (*gltf.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("asset: request %s: %w", url, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("asset: read %s: %w", url, err)
	}
	if len(data) > MaxAssetBytes {
		return nil, fmt.Errorf("asset: %s exceeds %d bytes", url, MaxAssetBytes)
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("asset: decode %s: %w (Content-Type: %s)", url, err, resp.Header.Get("Content-Type"))
	}
	log.Printf("📦 Asset decoded (%d nodes, %d meshes, %d bytes) for %s", len(doc.Nodes), len(doc.Meshes), len(data), url)
	return doc, nil
}

func (l *Loader) store(url string, doc *gltf.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.docs[url]; ok {
		l.remove(url)
	}
	for len(l.docs) >= l.maxSize && len(l.order) > 0 {
		l.remove(l.order[0])
	}
	l.docs[url] = &cachedDoc{doc: doc, fetchedAt: time.Now()}
	l.order = append(l.order, url)
}

// remove must be called with mu held.
func (l *Loader) remove(url string) {
	delete(l.docs, url)
	for i, u := range l.order {
		if u == url {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// Size returns the number of cached documents.
func (l *Loader) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}
