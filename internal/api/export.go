package api

import (
	"net/http"

	"wgpanel/internal/models"
	"wgpanel/internal/tarball"
)

// Export serves every peer's client config as one tar.gz. The archive is
// reproducible, so its sha256 doubles as the ETag.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	configs, err := h.reg.ExportConfigs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	files := make([]tarball.File, 0, len(configs))
	for _, c := range configs {
		files = append(files, tarball.File{
			Name: exportName(c.Peer),
			Data: []byte(c.Text),
		})
	}
	tgz, sum, err := tarball.Build(files)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := `"` + sum + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="wireguard-configs.tar.gz"`)
	models.WriteBody(w, http.StatusOK, "application/gzip", tgz)
}

// exportName keeps sanitized names unique by appending the id's first
// eight characters.
func exportName(p models.Peer) string {
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return configFileName(p.Name) + "-" + id + ".conf"
}
