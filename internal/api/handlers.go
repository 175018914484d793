package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"log"
	"net/http"
	"strconv"
	"time"

	"cogentcore.org/core/math32"
	"github.com/go-chi/chi/v5"

	"vibeverse/internal/avatar"
	"vibeverse/internal/render"
	"vibeverse/internal/session"
)

const (
	DefaultPreviewWidth  = 640
	DefaultPreviewHeight = 480
	MaxPreviewSize       = 2048
	MinPreviewSize       = 64

	// AvatarWaitTimeout bounds how long a waiting avatar request is held.
	AvatarWaitTimeout = 20 * time.Second
)

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap == nil {
		writeError(w, "Session not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetPortals(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap == nil {
		writeError(w, "Session not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]interface{}{
		"isVibeverse": snap.IsVibeverse,
		"portals":     snap.Portals,
	})
}

func (h *routerHandlers) handlePlayerMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X        float32 `json:"x"`
		Y        float32 `json:"y"`
		Z        float32 `json:"z"`
		Relative bool    `json:"relative"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	pos := h.session.MovePlayer(math32.Vec3(req.X, req.Y, req.Z), req.Relative)
	writeJSON(w, map[string]interface{}{
		"success":  true,
		"position": session.Vec3{pos.X, pos.Y, pos.Z},
	})
}

func (h *routerHandlers) handleAvatarSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rig  string `json:"rig"`
		Src  string `json:"src"` // URL or vibatar username
		Wait bool   `json:"wait"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Src == "" {
		writeError(w, "src is required", http.StatusBadRequest)
		return
	}

	done := h.session.SwapAvatar(req.Rig, req.Src)

	if !req.Wait {
		// rejections are reported synchronously
		select {
		case err := <-done:
			writeAvatarResult(w, req.Src, err)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"queued": true, "src": req.Src})
		}
		return
	}

	timer := time.NewTimer(AvatarWaitTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		writeAvatarResult(w, req.Src, err)
	case <-timer.C:
		writeError(w, "Avatar load still pending", http.StatusGatewayTimeout)
	case <-r.Context().Done():
	}
}

func writeAvatarResult(w http.ResponseWriter, src string, err error) {
	switch {
	case err == nil:
		writeJSON(w, map[string]interface{}{"success": true, "src": src})
	case errors.Is(err, avatar.ErrDomainNotAllowed):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, avatar.ErrEmptyAsset):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeError(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *routerHandlers) handlePortalLabel(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	img, err := h.session.LabelImage(role)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writePNG(w, img)
}

func (h *routerHandlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	width := queryInt(r, "w", h.previewWidth)
	height := queryInt(r, "h", h.previewHeight)
	writePNG(w, h.session.Preview(width, height))
}

func (h *routerHandlers) handleWarpStart(w http.ResponseWriter, r *http.Request) {
	log.Println("🌀 Warp start requested via API")
	h.session.StartWarp()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleWarpStop(w http.ResponseWriter, r *http.Request) {
	log.Println("🌀 Warp stop requested via API")
	h.session.StopWarp()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleHUD(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.session.RenderHUD(&buf); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleHUDShow(w http.ResponseWriter, r *http.Request) {
	h.session.SetHUDVisible(true)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleHUDHide(w http.ResponseWriter, r *http.Request) {
	h.session.SetHUDVisible(false)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleEventStats(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, "Event log disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, h.events.Stats())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writePNG encodes into memory first so an encoding failure can still be
// reported as an error response.
func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// queryInt reads a size parameter clamped to the preview limits.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultVal
	}
	return max(MinPreviewSize, min(v, MaxPreviewSize))
}
