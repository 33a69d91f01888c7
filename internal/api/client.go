package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"zcas/internal/blobstore"
	"zcas/internal/registry"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	httpTimeoutEnvKey  = "ZCAS_HTTP_TIMEOUT"
	apiTokenEnvKey     = "ZCAS_API_TOKEN"

	// HeaderCodec names the codec a served blob is stored with.
	HeaderCodec = "X-Zcas-Codec"
	// HeaderContentHash echoes the content hash of a served blob.
	HeaderContentHash = "X-Zcas-Content-Hash"
)

// Client is a simple HTTP client for the zcas API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// Upload streams content to the server as a multipart form.
func (c *Client) Upload(ctx context.Context, content io.Reader, req UploadRequest) (ImportResponse, error) {
	var resp ImportResponse

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, content, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/blobs", pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	c.setAuthHeader(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeUploadForm(form *multipart.Writer, content io.Reader, req UploadRequest) error {
	fields := [][2]string{
		{"collection", req.Collection},
		{"filename", req.Filename},
		{"media_type", req.MediaType},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("content", firstNonEmpty(req.Filename, "content"))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return form.Close()
}

// OpenBlob returns the decompressed content of a blob. ok is false when
// the server has no blob for contentHash.
func (c *Client) OpenBlob(ctx context.Context, contentHash string) (io.ReadCloser, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/blobs/"+url.PathEscape(contentHash), nil)
	if err != nil {
		return nil, false, err
	}
	c.setAuthHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, false, nil
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, false, decodeError(resp)
	}
	return resp.Body, true, nil
}

func (c *Client) VerifyBlob(ctx context.Context, contentHash string) (blobstore.VerifyResult, error) {
	var resp blobstore.VerifyResult
	err := c.do(ctx, http.MethodGet, "/v1/blobs/"+url.PathEscape(contentHash)+"/verify", nil, nil, &resp)
	return resp, err
}

func (c *Client) GetResource(ctx context.Context, id string) (registry.Resource, error) {
	var resp registry.Resource
	err := c.do(ctx, http.MethodGet, "/v1/resources/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListResources(ctx context.Context, query url.Values) ([]registry.Resource, error) {
	var resp []registry.Resource
	err := c.do(ctx, http.MethodGet, "/v1/resources", query, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
