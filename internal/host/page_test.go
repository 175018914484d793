package host

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeverse/internal/portal"
)

var _ portal.Page = (*Page)(nil)

func TestPageQueryAndNavigation(t *testing.T) {
	var seen []string
	p, err := NewPage("https://game.example/play?ref=a.com&username=bob", OnNavigate(func(target string) {
		seen = append(seen, target)
	}))
	require.NoError(t, err)
	assert.Equal(t, "ref=a.com&username=bob", p.RawQuery())

	_, ok := p.LastNavigation()
	assert.False(t, ok)

	p.Navigate("https://portal.pieter.com?portal=true")
	last, ok := p.LastNavigation()
	require.True(t, ok)
	assert.Equal(t, "https://portal.pieter.com?portal=true", last)
	assert.Equal(t, "portal=true", p.RawQuery())
	assert.Equal(t, []string{"https://portal.pieter.com?portal=true"}, seen)
}

func TestPageNavigationHistoryIsBounded(t *testing.T) {
	p, err := NewPage("https://game.example/")
	require.NoError(t, err)
	for i := 0; i < MaxNavigations+5; i++ {
		p.Navigate("/next")
	}
	assert.Len(t, p.Navigations(), MaxNavigations)
}

func TestPageHiddenFrames(t *testing.T) {
	p, err := NewPage("https://game.example/")
	require.NoError(t, err)

	assert.False(t, p.HasElement(portal.PreloadFrameID))
	p.CreateHiddenFrame(portal.PreloadFrameID, "https://portal.pieter.com?portal=true")
	assert.True(t, p.HasElement(portal.PreloadFrameID))

	frames := p.Frames()
	require.Len(t, frames, 1)
	assert.False(t, frames[0].Warmed)
}

func TestPageWarmup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	p, err := NewPage("https://game.example/", WithWarmup(srv.Client()))
	require.NoError(t, err)

	p.CreateHiddenFrame("ok", srv.URL+"/hub")
	p.CreateHiddenFrame("missing", srv.URL+"/gone")
	p.WaitWarmups()

	assert.Equal(t, int32(2), hits.Load())
	for _, f := range p.Frames() {
		switch f.ID {
		case "ok":
			assert.True(t, f.Warmed)
			assert.Equal(t, http.StatusOK, f.Status)
		case "missing":
			assert.False(t, f.Warmed)
			assert.Equal(t, http.StatusNotFound, f.Status)
		}
	}
}

func TestNewPageRejectsBadURL(t *testing.T) {
	_, err := NewPage("://nope")
	assert.Error(t, err)
}
