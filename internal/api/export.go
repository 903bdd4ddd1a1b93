package api

import (
	"net/http"
)

// flagSummary is the read-only listing shape for GET /api/v1/flags.
type flagSummary struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	Enabled  bool   `json:"enabled"`
	Segments int    `json:"segments"`
	Variants int    `json:"variants"`
}

// handleExportSnapshot serves the full snapshot document. Clients poll
// with If-None-Match and get 304 while the configuration is unchanged.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Current()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag() {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag())
	writeJSON(w, http.StatusOK, snap.Document())
}

// handleListFlags serves a compact flag listing from the snapshot.
func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Current()
	flags := snap.Flags()
	out := make([]flagSummary, 0, len(flags))
	for _, f := range flags {
		out = append(out, flagSummary{
			ID:       f.ID,
			Key:      f.Key,
			Enabled:  f.Enabled,
			Segments: len(f.Segments),
			Variants: len(f.Variants),
		})
	}
	w.Header().Set("ETag", snap.ETag())
	writeJSON(w, http.StatusOK, map[string]any{"flags": out})
}
