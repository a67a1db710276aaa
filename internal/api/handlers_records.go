package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/docsplit/internal/contentgraph"
)

// handleGetRecord fetches the content-graph node for an identity seed, such
// as s3-sitemap-<key>.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.nodes == nil {
		jsonError(w, "content graph unavailable", http.StatusServiceUnavailable)
		return
	}
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		jsonError(w, "identity query parameter is required", http.StatusBadRequest)
		return
	}

	node, err := s.nodes.GetNode(r.Context(), contentgraph.NodeID(identity))
	if err != nil {
		jsonError(w, "failed to get record: "+err.Error(), http.StatusBadGateway)
		return
	}
	if node == nil {
		jsonError(w, "record not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(node)
}

// handleDeleteRecord removes the content-graph node for an identity seed.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if s.nodes == nil {
		jsonError(w, "content graph unavailable", http.StatusServiceUnavailable)
		return
	}
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		jsonError(w, "identity query parameter is required", http.StatusBadRequest)
		return
	}

	id := contentgraph.NodeID(identity)
	if err := s.nodes.DeleteNode(r.Context(), id); err != nil {
		jsonError(w, "failed to delete record: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("record deleted", "identity", identity, "node_id", id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"identity": identity,
		"node_id":  id,
		"deleted":  true,
	})
}
