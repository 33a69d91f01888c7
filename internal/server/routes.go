package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Blobs.
	mux.HandleFunc("POST /v1/blobs", s.handleUploadBlob)
	mux.HandleFunc("GET /v1/blobs/{hash}", s.handleGetBlob)
	mux.HandleFunc("GET /v1/blobs/{hash}/verify", s.handleVerifyBlob)
	mux.HandleFunc("GET /v1/blobs/{hash}/resources", s.handleBlobResources)

	// Resources.
	mux.HandleFunc("GET /v1/resources", s.handleListResources)
	mux.HandleFunc("GET /v1/resources/{id}", s.handleGetResource)

	return mux
}
