package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	query       string
	navigations []string
	frames      map[string]string
}

func newFakePage(query string) *fakePage {
	return &fakePage{query: query, frames: map[string]string{}}
}

func (p *fakePage) RawQuery() string { return p.query }

func (p *fakePage) Navigate(target string) {
	p.navigations = append(p.navigations, target)
}

func (p *fakePage) HasElement(id string) bool {
	_, ok := p.frames[id]
	return ok
}

func (p *fakePage) CreateHiddenFrame(id, src string) {
	p.frames[id] = src
}

func TestParseQueryKeepsOrder(t *testing.T) {
	q := ParseQuery("?b=2&a=1&msg=hello+world&odd=%zz&flag&b=3")
	require.Len(t, q, 6)
	assert.Equal(t, Param{"b", "2"}, q[0])
	assert.Equal(t, Param{"a", "1"}, q[1])
	assert.Equal(t, Param{"msg", "hello world"}, q[2])
	assert.Equal(t, Param{"odd", "%zz"}, q[3])
	assert.Equal(t, Param{"flag", ""}, q[4])

	v, ok := q.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v, "first value wins")
	assert.True(t, q.Has("flag"))
	assert.False(t, q.Has("missing"))

	assert.Equal(t, "a=1&msg=hello+world&odd=%25zz&flag=", q.Without("b").Encode())
	assert.Empty(t, ParseQuery("").Encode())
}

func TestQuerySetDefault(t *testing.T) {
	q := Query{{"portal", "true"}}
	q = q.SetDefault("portal", "false")
	q = q.SetDefault("speed", "3")
	assert.Equal(t, "portal=true&speed=3", q.Encode())
}

func TestIsVibeverse(t *testing.T) {
	assert.True(t, IsVibeverse("ref=otherGame.com"))
	assert.True(t, IsVibeverse("?username=a&ref=x"))
	assert.False(t, IsVibeverse(""))
	assert.False(t, IsVibeverse("referrer=x"))
}

func newTestNavigator(query, username string, warp *WarpController) (*Navigator, *fakePage) {
	opts := Options{}
	if username != "" {
		opts.Username = &username
	}
	cfg := Resolve(opts)
	page := newFakePage(query)
	return NewNavigator(&cfg, page, ParseQuery(query), warp, nil), page
}

func TestReferrer(t *testing.T) {
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"ref=otherGame.com", "https://otherGame.com", true},
		{"ref=http://local.test:8080", "http://local.test:8080", true},
		{"ref=https%3A%2F%2Fa.io%2Fplay", "https://a.io/play", true},
		{"ref=", "", false},
		{"username=bob", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			n, _ := newTestNavigator(tt.query, "", nil)
			got, ok := n.Referrer()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartPortalTarget(t *testing.T) {
	n, _ := newTestNavigator("username=bob&ref=otherGame.com&color=red&speed=4", "", nil)
	target, ok := n.StartPortalTarget()
	require.True(t, ok)
	assert.Equal(t, "https://otherGame.com?username=bob&color=red&speed=4", target)

	n, _ = newTestNavigator("ref=otherGame.com", "", nil)
	target, ok = n.StartPortalTarget()
	require.True(t, ok)
	assert.Equal(t, "https://otherGame.com", target)
}

func TestEnterStartPortalWithoutReferrer(t *testing.T) {
	n, page := newTestNavigator("username=bob", "", nil)
	assert.False(t, n.EnterStartPortal())
	assert.Empty(t, page.navigations)
}

func TestExitPortalTarget(t *testing.T) {
	n, _ := newTestNavigator("color=red&speed=3&username=someone&ref=x.io", "alice", nil)
	assert.Equal(t,
		"https://portal.pieter.com?portal=true&username=alice&color=white&speed=3&ref=x.io",
		n.ExitPortalTarget())

	n, _ = newTestNavigator("", "", nil)
	assert.Equal(t, "https://portal.pieter.com?portal=true&color=white", n.ExitPortalTarget())

	n, _ = newTestNavigator("username=bob", "", nil)
	assert.Equal(t, "https://portal.pieter.com?portal=true&color=white&username=bob", n.ExitPortalTarget())
}

func TestEnterExitPortalPreloadsOnce(t *testing.T) {
	cfg := DefaultWarpConfig()
	f := newWarpFixture(&cfg)
	n, page := newTestNavigator("", "alice", f.warp)

	n.EnterExitPortal()
	want := "https://portal.pieter.com?portal=true&username=alice&color=white"
	assert.Equal(t, []string{want}, page.navigations)
	assert.Equal(t, want, page.frames[PreloadFrameID])
	assert.True(t, f.warp.Warping(), "warp plays while leaving")

	page.frames[PreloadFrameID] = "kept"
	n.EnterExitPortal()
	assert.Len(t, page.navigations, 2)
	assert.Equal(t, "kept", page.frames[PreloadFrameID])
}

func TestEnterStartPortalNavigatesAndWarps(t *testing.T) {
	cfg := DefaultWarpConfig()
	f := newWarpFixture(&cfg)
	n, page := newTestNavigator("ref=otherGame.com&avatar=alice", "", f.warp)

	assert.True(t, n.EnterStartPortal())
	assert.Equal(t, []string{"https://otherGame.com?avatar=alice"}, page.navigations)
	assert.True(t, f.warp.Warping())
	assert.Empty(t, page.frames, "start portal does not preload")
}
