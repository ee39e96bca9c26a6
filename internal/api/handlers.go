package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"wgpanel/internal/logs"
	"wgpanel/internal/middleware"
	"wgpanel/internal/models"
	"wgpanel/internal/registry"
)

func NewHandler(reg Registry) *Handler { return &Handler{reg: reg} }

type Handler struct {
	reg Registry
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := registry.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logs.Component("api").WithField("reqid", middleware.GetRequestID(r)).WithError(err).Error("request failed")
	}
	models.WriteProblem(w, status, http.StatusText(status), err.Error(), nil)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) Server(w http.ResponseWriter, r *http.Request) {
	info, err := h.reg.Server(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) ListPeers(w http.ResponseWriter, r *http.Request) {
	views, err := h.reg.ListPeers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]PeerDTO, 0, len(views))
	for _, v := range views {
		out = append(out, peerViewDTO(v))
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) GetPeer(w http.ResponseWriter, r *http.Request) {
	p, err := h.reg.GetPeer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, peerDTO(*p))
}

func (h *Handler) CreatePeer(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.reg.CreatePeer(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, peerDTO(*p))
}

func (h *Handler) DeletePeer(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.DeletePeer(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnablePeer(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.reg.EnablePeer(r.Context(), mux.Vars(r)["id"]))
}

func (h *Handler) DisablePeer(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.reg.DisablePeer(r.Context(), mux.Vars(r)["id"]))
}

func (h *Handler) RenamePeer(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	h.noContent(w, r, h.reg.RenamePeer(r.Context(), mux.Vars(r)["id"], req.Name))
}

func (h *Handler) UpdatePeerAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decode(w, r, &req) {
		return
	}
	h.noContent(w, r, h.reg.UpdatePeerAddress(r.Context(), mux.Vars(r)["id"], req.Address))
}

func (h *Handler) noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PeerConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.reg.GetPeer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := h.reg.PeerConfig(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.conf"`, configFileName(p.Name)))
	models.WriteBody(w, http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *Handler) PeerQRCode(w http.ResponseWriter, r *http.Request) {
	svg, err := h.reg.PeerQRCode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteBody(w, http.StatusOK, "image/svg+xml", []byte(svg))
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_=+.-]+`)

// configFileName makes a peer name usable as a download file name. Some
// WireGuard clients refuse names longer than 15 characters.
func configFileName(name string) string {
	s := strings.Trim(unsafeFileChars.ReplaceAllString(name, "-"), "-.")
	if len(s) > 15 {
		s = strings.TrimRight(s[:15], "-.")
	}
	if s == "" {
		return "peer"
	}
	return s
}
