// Package client provides an HTTP client for the helix server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
)

// Client talks to the helix REST API on behalf of one owner.
type Client struct {
	baseURL    string
	owner      string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses HELIX_URL env var or defaults to localhost:8484.
// Timeout can be configured via HELIX_CLIENT_TIMEOUT env var (default 5m for uploads).
func New(baseURL, owner string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("HELIX_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("HELIX_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		owner:   owner,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.owner != "" {
		req.Header.Set("X-User-ID", c.owner)
	}
	return req, nil
}

// send executes req and decodes a JSON answer into result (if non-nil).
func (c *Client) send(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, body)
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeError(code int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: code, Message: msg}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, result)
}

type startResponse struct {
	Message   string `json:"message"`
	ProcessID string `json:"process_id"`
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// Upload sends local files as one batch and returns the batch id.
func (c *Client) Upload(ctx context.Context, paths []string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			for _, p := range paths {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				fw, err := mw.CreateFormFile("files", filepath.Base(p))
				if err == nil {
					_, err = io.Copy(fw, f)
				}
				f.Close()
				if err != nil {
					return err
				}
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp startResponse
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	return resp.ProcessID, nil
}

// ProcessURLs submits links as one batch and returns the batch id.
func (c *Client) ProcessURLs(ctx context.Context, urls []string) (string, error) {
	var resp startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/process-urls", map[string]any{"urls": urls}, &resp); err != nil {
		return "", err
	}
	return resp.ProcessID, nil
}

// GetBatch fetches one batch record.
func (c *Client) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := c.doJSON(ctx, http.MethodGet, "/processes/"+url.PathEscape(id), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// RecentBatches lists the owner's newest batches. limit <= 0 uses the server default.
func (c *Client) RecentBatches(ctx context.Context, limit int) ([]models.Batch, error) {
	path := "/processes/recent"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Processes []models.Batch `json:"processes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

// ProcessedFiles lists the owner's metadata records per category.
func (c *Client) ProcessedFiles(ctx context.Context) (map[models.Category][]models.ProcessedFile, error) {
	var resp map[models.Category][]models.ProcessedFile
	if err := c.doJSON(ctx, http.MethodGet, "/files/processed", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type fileRequest struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// DeleteFile removes a processed item.
func (c *Client) DeleteFile(ctx context.Context, cat models.Category, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files", fileRequest{FileName: name, FileType: string(cat)}, nil)
}

// Download streams a processed item's content into w and returns its
// stored file name.
func (c *Client) Download(ctx context.Context, cat models.Category, name string, w io.Writer) (string, error) {
	data, err := json.Marshal(fileRequest{FileName: name, FileType: string(cat)})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/download", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", decodeError(resp.StatusCode, body)
	}

	filename := name
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return filename, nil
}

// Stats fetches the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Watch streams batch snapshots from the server until the batch completes.
// onUpdate is invoked for every snapshot; return an error from it to abort.
func (c *Client) Watch(ctx context.Context, id string, onUpdate func(models.Batch) error) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/processes/" + url.PathEscape(id) + "/watch")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.owner != "" {
		header.Set("X-User-ID", c.owner)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return decodeError(resp.StatusCode, body)
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var batch models.Batch
		if err := conn.ReadJSON(&batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		if err := onUpdate(batch); err != nil {
			return err
		}
		if batch.Completed() {
			return nil
		}
	}
}
