package portal

import (
	"html/template"
	"io"
	"net/url"
)

var hudTemplate = template.Must(template.New("hud").Parse(`<div id="vibeverse-hud" style="position:fixed;top:12px;right:12px;z-index:1000;{{if not .Visible}}display:none;{{end}}">
  <a href="{{.Link}}" style="display:block;padding:8px 14px;border-radius:8px;background:rgba(0,0,0,.6);color:{{.Color}};font:bold 14px monospace;text-decoration:none;">{{.Label}}</a>
</div>
`))

// HUD is the on-screen shortcut to the hub.
type HUD struct {
	link    string
	label   string
	color   string
	visible bool
}

// NewHUD links to the hub, carrying username when it is set.
func NewHUD(cfg *Config) *HUD {
	link := cfg.HubURL
	if cfg.Username != "" {
		link += "?username=" + url.QueryEscape(cfg.Username)
	}
	return &HUD{
		link:    link,
		label:   cfg.Exit.Label,
		color:   cfg.Exit.Color,
		visible: true,
	}
}

func (h *HUD) Show() { h.visible = true }

func (h *HUD) Hide() { h.visible = false }

func (h *HUD) Visible() bool { return h.visible }

// Link is the hub URL the HUD points at.
func (h *HUD) Link() string { return h.link }

// Render writes the HUD markup.
func (h *HUD) Render(w io.Writer) error {
	return hudTemplate.Execute(w, struct {
		Link    string
		Label   string
		Color   string
		Visible bool
	}{h.link, h.label, h.color, h.visible})
}
