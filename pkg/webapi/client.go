// Package webapi talks to the device's HTTP side channel: the file list,
// firmware upload and file deletion. Everything else goes over the
// WebSocket session.
package webapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/espixelstick/esps-go/pkg/wire"
)

// Endpoint paths.
const (
	PathFiles      = "/files"
	PathUpdate     = "/updatefw"
	PathFileDelete = "/file/delete/"
)

// FirmwareField is the multipart field name of an upload.
const FirmwareField = "file"

var (
	// ErrInvalidURL is returned for a base URL that is not http(s) or ws(s).
	ErrInvalidURL = errors.New("webapi: invalid device URL")

	// ErrEmptyName is returned when a file name is empty.
	ErrEmptyName = errors.New("webapi: file name is required")
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webapi: unexpected %d response from %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body)
}

// Progress reports upload progress. total is -1 when unknown.
type Progress func(sent, total int64)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the device address. A WebSocket URL such as
	// "ws://10.0.0.5/ws" is accepted and mapped to "http://10.0.0.5".
	BaseURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Logger is used for debug logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Client is an HTTP client for one device.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client.
func NewClient(config ClientConfig) (*Client, error) {
	base, err := BaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// BaseURL maps a device URL to the root of its HTTP server.
func BaseURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("%w %q: scheme %q", ErrInvalidURL, raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w %q: no host", ErrInvalidURL, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// URL returns the base URL requests are sent to.
func (c *Client) URL() string { return c.baseURL }

// Files fetches the storage listing.
func (c *Client) Files(ctx context.Context) (*wire.FileList, error) {
	body, err := c.do(ctx, http.MethodGet, PathFiles, "", nil)
	if err != nil {
		return nil, err
	}
	return wire.ParseFileList(body)
}

// DeleteFile removes one file from the device's storage.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	_, err := c.do(ctx, http.MethodPost, PathFileDelete+url.PathEscape(name), "", nil)
	return err
}

// UploadFirmware sends an image to the device, which flashes it and
// reboots. progress may be nil.
func (c *Client) UploadFirmware(ctx context.Context, name string, image io.Reader, size int64, progress Progress) error {
	if name == "" {
		return ErrEmptyName
	}
	if size < 0 {
		size = -1
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(FirmwareField, filepath.Base(name))
		if err == nil {
			_, err = io.Copy(part, &countingReader{r: image, total: size, progress: progress})
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	_, err := c.do(ctx, http.MethodPost, PathUpdate, mw.FormDataContentType(), pr)
	pr.Close()
	return err
}

// UploadFirmwareFile uploads the image at path.
func (c *Client) UploadFirmwareFile(ctx context.Context, path string, progress Progress) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("webapi: open firmware: %w", err)
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return c.UploadFirmware(ctx, path, f, size, progress)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("webapi: failed to create request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	if c.logger != nil {
		c.logger.Debug("http request", "method", method, "path", path)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("webapi: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("webapi: failed to read response body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: response.StatusCode,
			Body:       string(bytes.TrimSpace(data)),
		}
	}
	return data, nil
}

type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress Progress
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent, c.total)
		}
	}
	return n, err
}
