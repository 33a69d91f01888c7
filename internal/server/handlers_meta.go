package server

import (
	"net/http"

	"zcas/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	plan, err := s.registry.MigrationPlan()
	if err != nil {
		s.writeRegistryError(w, r, err)
		return
	}

	codecs := s.codecs
	if codecs == nil {
		codecs = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		Codec:         s.blobs.Codec().Name(),
		HashAlgorithm: string(s.blobs.HashAlgorithm()),
		Codecs:        codecs,
		SchemaVersion: plan.CurrentVersion,
	})
}
