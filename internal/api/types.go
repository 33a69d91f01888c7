package api

import (
	"zcas/internal/blobstore"
	"zcas/internal/registry"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes the store behind a server.
type InfoResponse struct {
	Codec         string   `json:"codec" yaml:"codec"`
	HashAlgorithm string   `json:"hash_algorithm" yaml:"hash_algorithm"`
	Codecs        []string `json:"codecs" yaml:"codecs"`
	SchemaVersion int      `json:"schema_version" yaml:"schema_version"`
}

// ImportResponse is returned for an uploaded blob.
type ImportResponse struct {
	Descriptor blobstore.ImportDescriptor `json:"descriptor" yaml:"descriptor"`
	Resource   registry.Resource          `json:"resource" yaml:"resource"`
}

// UploadRequest carries the form fields sent with an upload.
type UploadRequest struct {
	Collection string
	Filename   string
	MediaType  string
}
