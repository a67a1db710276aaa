package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"workers":     s.orchestrator.Workers(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"runs":        s.orchestrator.JobCounts(),
		"buckets":     s.cfg.Buckets,
		"key_prefix":  s.cfg.KeyPrefix,
	})
}
