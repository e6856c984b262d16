package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ws://10.0.0.5/ws", want: "http://10.0.0.5"},
		{in: "wss://esps.local:8443/ws", want: "https://esps.local:8443"},
		{in: "http://10.0.0.5:8080", want: "http://10.0.0.5:8080"},
		{in: "10.0.0.5", want: "http://10.0.0.5"},
		{in: "", wantErr: true},
		{in: "ftp://10.0.0.5", wantErr: true},
		{in: "ws:///ws", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := BaseURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestFiles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathFiles, r.URL.Path)
		io.WriteString(w, `{"SdCardPresent":true,"totalBytes":1024,"usedBytes":300,
			"files":[{"name":"show.fseq","date":1700000000,"length":300}]}`)
	}))

	list, err := c.Files(context.Background())
	require.NoError(t, err)
	assert.True(t, list.SDCardPresent)
	assert.Equal(t, int64(1024), list.TotalBytes)
	assert.Equal(t, 1, list.NumFiles)
	assert.Equal(t, []string{"show.fseq"}, list.Names())
}

func TestFilesErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no card", http.StatusServiceUnavailable)
	}))

	_, err := c.Files(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "no card", se.Body)
	assert.Contains(t, err.Error(), "GET /files")
}

func TestDeleteFile(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got = r.URL.Path
	}))

	require.NoError(t, c.DeleteFile(context.Background(), "my show.fseq"))
	assert.Equal(t, "/file/delete/my show.fseq", got)

	assert.ErrorIs(t, c.DeleteFile(context.Background(), ""), ErrEmptyName)
}

func TestUploadFirmware(t *testing.T) {
	image := strings.Repeat("x", 100_000)
	var received string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathUpdate, r.URL.Path)
		f, header, err := r.FormFile(FirmwareField)
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		assert.Equal(t, "firmware.bin", header.Filename)
		b, _ := io.ReadAll(f)
		received = string(b)
	}))

	var (
		mu    sync.Mutex
		last  int64
		total int64
	)
	err := c.UploadFirmware(context.Background(), "/tmp/build/firmware.bin",
		strings.NewReader(image), int64(len(image)), func(sent, size int64) {
			mu.Lock()
			defer mu.Unlock()
			assert.GreaterOrEqual(t, sent, last)
			last, total = sent, size
		})
	require.NoError(t, err)
	assert.Equal(t, image, received)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(len(image)), last)
	assert.Equal(t, int64(len(image)), total)
}

func TestUploadFirmwareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esps.bin")
	require.NoError(t, os.WriteFile(path, []byte("image"), 0o600))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Update failed", http.StatusInternalServerError)
	}))

	var se *StatusError
	err := c.UploadFirmwareFile(context.Background(), path, nil)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Update failed", se.Body)

	err = c.UploadFirmwareFile(context.Background(), filepath.Join(t.TempDir(), "missing.bin"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
