package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"wgpanel/internal/middleware"
)

// RegisterRoutes mounts the peer API under /api/wireguard. A non-nil verify
// puts it behind bearer password auth.
func RegisterRoutes(r *mux.Router, reg Registry, verify func(password string) bool) {
	h := NewHandler(reg)
	sub := r.PathPrefix("/api/wireguard").Subrouter()
	sub.Use(middleware.PasswordAuth(verify))

	sub.HandleFunc("/server", h.Server).Methods(http.MethodGet)
	sub.HandleFunc("/export.tar.gz", h.Export).Methods(http.MethodGet)
	sub.HandleFunc("/client", h.ListPeers).Methods(http.MethodGet)
	sub.HandleFunc("/client", h.CreatePeer).Methods(http.MethodPost)
	sub.HandleFunc("/client/{id}", h.GetPeer).Methods(http.MethodGet)
	sub.HandleFunc("/client/{id}", h.DeletePeer).Methods(http.MethodDelete)
	sub.HandleFunc("/client/{id}/qrcode.svg", h.PeerQRCode).Methods(http.MethodGet)
	sub.HandleFunc("/client/{id}/configuration", h.PeerConfig).Methods(http.MethodGet)
	sub.HandleFunc("/client/{id}/enable", h.EnablePeer).Methods(http.MethodPost)
	sub.HandleFunc("/client/{id}/disable", h.DisablePeer).Methods(http.MethodPost)
	sub.HandleFunc("/client/{id}/name", h.RenamePeer).Methods(http.MethodPut)
	sub.HandleFunc("/client/{id}/address", h.UpdatePeerAddress).Methods(http.MethodPut)
}
