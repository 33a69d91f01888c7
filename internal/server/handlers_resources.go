package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"zcas/internal/registry"
)

const maxListLimit = 1000

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	limit, err := queryIntDefault(r, "limit", maxListLimit)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	resources, err := s.registry.List(r.Context(), r.URL.Query().Get("collection"), limit)
	if err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	if resources == nil {
		resources = []registry.Resource{}
	}
	s.writeJSON(w, http.StatusOK, resources)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := uuid.Validate(id); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID))
		return
	}

	res, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	if res == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("resource not found"), ErrCodeResourceNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}
