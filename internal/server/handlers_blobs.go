package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"zcas/internal/api"
	"zcas/internal/blobstore"
	"zcas/internal/registry"
)

const (
	uploadMaxBody  = 1 << 30 // 1 GiB
	formFieldLimit = 4 << 10 // 4 KiB
)

// handleUploadBlob streams a multipart upload into the store. Form
// fields must precede the "content" part.
func (s *Server) handleUploadBlob(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.uploadLimiter, w, r, "upload") {
		return
	}
	defer s.releaseLimiter(s.uploadLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, int64(uploadMaxBody))
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("multipart body required: %w", err)))
		return
	}

	fields := map[string]string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeErrorReq(w, r, http.StatusBadRequest, missingField("content"))
			return
		}
		if err != nil {
			s.writeUploadError(w, r, err)
			return
		}

		name := part.FormName()
		if name != "content" {
			value, err := readFormField(part)
			part.Close()
			if err != nil {
				s.writeUploadError(w, r, err)
				return
			}
			fields[name] = value
			continue
		}

		resp, err := s.storeUpload(r, part, fields)
		part.Close()
		if err != nil {
			s.writeUploadError(w, r, err)
			return
		}
		w.Header().Set(api.HeaderContentHash, resp.Descriptor.ContentHash)
		w.Header().Set(api.HeaderCodec, resp.Descriptor.Codec)
		s.writeJSON(w, http.StatusCreated, resp)
		return
	}
}

func (s *Server) storeUpload(r *http.Request, part *multipart.Part, fields map[string]string) (api.ImportResponse, error) {
	collection := strings.TrimSpace(fields["collection"])
	if collection == "" {
		return api.ImportResponse{}, missingField("collection")
	}

	buffered := bufio.NewReader(part)
	mediaType := strings.TrimSpace(fields["media_type"])
	if mediaType == "" {
		peek, _ := buffered.Peek(512)
		mediaType = http.DetectContentType(peek)
	}
	filename := strings.TrimSpace(fields["filename"])
	if filename == "" {
		filename = part.FileName()
	}

	desc, err := s.blobs.ImportReader(r.Context(), buffered, collection)
	if err != nil {
		return api.ImportResponse{}, err
	}
	res, err := s.registry.Record(r.Context(), desc, registry.RecordInput{Filename: filename, MediaType: mediaType})
	if err != nil {
		return api.ImportResponse{}, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeRegistryFailure, err)
	}
	s.log().Info("blob uploaded", "hash", desc.ContentHash, "size", desc.Size, "collection", collection, "deduplicated", desc.Deduplicated, "resource_id", res.ID)
	return api.ImportResponse{Descriptor: desc, Resource: *res}, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// The client went away; nobody is left to read a response.
		s.log().Debug("upload canceled", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		return
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		s.writeErrorReq(w, r, http.StatusRequestEntityTooLarge, makeAPIError(http.StatusRequestEntityTooLarge, "too_large", ErrCodeRequestTooLarge, fmt.Errorf("upload exceeds %d bytes", maxBytesErr.Limit)))
		return
	}
	var apiErr apiError
	if errors.As(err, &apiErr) {
		s.writeErrorReq(w, r, apiErr.status, err)
		return
	}
	if blobstore.IsStorageError(err) || blobstore.IsConfigurationError(err) {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
}

func readFormField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, formFieldLimit+1))
	if err != nil {
		return "", err
	}
	if len(data) > formFieldLimit {
		return "", badRequest(fmt.Errorf("form field %s too large", part.FormName()))
	}
	return string(data), nil
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimSpace(r.PathValue("hash"))
	etag := `"` + hash + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		exists, err := s.blobExists(r, hash)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if exists {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	stream, ok, err := s.blobs.OpenByHash(r.Context(), hash)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("blob not found"), ErrCodeBlobNotFound))
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", etag)
	w.Header().Set(api.HeaderCodec, stream.Codec())
	w.Header().Set(api.HeaderContentHash, hash)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, stream); err != nil {
		s.log().Error("stream blob", "hash", hash, "uri", stream.URI(), "error", err)
	}
}

func (s *Server) blobExists(r *http.Request, hash string) (bool, error) {
	stream, ok, err := s.blobs.OpenByHash(r.Context(), hash)
	if err != nil || !ok {
		return false, err
	}
	return true, stream.Close()
}

func (s *Server) handleVerifyBlob(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.verifyLimiter, w, r, "verify") {
		return
	}
	defer s.releaseLimiter(s.verifyLimiter)

	result, err := s.blobs.Verify(r.Context(), strings.TrimSpace(r.PathValue("hash")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if result.Status == blobstore.VerifyMissing {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("blob not found"), ErrCodeBlobNotFound))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBlobResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.registry.FindByHash(r.Context(), strings.TrimSpace(r.PathValue("hash")))
	if err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	if resources == nil {
		resources = []registry.Resource{}
	}
	s.writeJSON(w, http.StatusOK, resources)
}
