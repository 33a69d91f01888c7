// Package server exposes a blob store and its resource registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"zcas/internal/blobstore"
	"zcas/internal/codec"
	"zcas/internal/digest"
	"zcas/internal/registry"
)

const (
	apiTokenEnvKey         = "ZCAS_API_TOKEN"
	allowRemoteEnvKey      = "ZCAS_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 10 * time.Second
	uploadConcurrencyLimit = 4
	verifyConcurrencyLimit = 2
)

// BlobStore is the part of the blob store the server uses.
type BlobStore interface {
	blobstore.BlobStore
	Verify(ctx context.Context, contentHash string) (blobstore.VerifyResult, error)
	HashAlgorithm() digest.Algorithm
	Codec() codec.Codec
}

// ResourceRegistry records and looks up imported resources.
type ResourceRegistry interface {
	Record(ctx context.Context, desc blobstore.ImportDescriptor, in registry.RecordInput) (*registry.Resource, error)
	Get(ctx context.Context, id string) (*registry.Resource, error)
	FindByHash(ctx context.Context, contentHash string) ([]registry.Resource, error)
	List(ctx context.Context, collection string, limit int) ([]registry.Resource, error)
	MigrationPlan() (*registry.MigrationStatus, error)
}

// Server wraps HTTP handlers for the zcas API.
type Server struct {
	addr          string
	blobs         BlobStore
	registry      ResourceRegistry
	codecs        []string
	logger        *slog.Logger
	apiToken      string
	uploadLimiter chan struct{}
	verifyLimiter chan struct{}
}

// New creates a new server instance. codecs lists the codec names
// reported by /v1/info.
func New(addr string, blobs BlobStore, reg ResourceRegistry, codecs []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:          addr,
		blobs:         blobs,
		registry:      reg,
		codecs:        codecs,
		logger:        logger.With("component", "server"),
		apiToken:      strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
		uploadLimiter: make(chan struct{}, uploadConcurrencyLimit),
		verifyLimiter: make(chan struct{}, verifyConcurrencyLimit),
	}
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log().Info("stopping server", "addr", s.addr)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
