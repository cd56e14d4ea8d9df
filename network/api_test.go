package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Create(t *testing.T) {
	// Given
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "1.0.0", r.Header.Get("Tus-Resumable"))
		assert.Equal(t, "10", r.Header.Get("Upload-Length"))
		w.Header().Set("Location", "/files/abc")
		w.Header().Set("stream-media-id", "media-1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(log.NewLogger())
	header := http.Header{}
	header.Set("Tus-Resumable", "1.0.0")
	header.Set("Upload-Length", "10")

	// When
	resp, err := client.Create(context.Background(), server.URL, header)

	// Then
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/files/abc", resp.Header.Get("Location"))
	assert.Equal(t, "media-1", resp.Header.Get("Stream-Media-Id"))
}

func TestClient_QueryOffset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Upload-Offset", "42")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewClient(log.NewLogger()).QueryOffset(context.Background(), server.URL, http.Header{})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", resp.Header.Get("Upload-Offset"))
}

func TestClient_SendChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, int64(5), r.ContentLength)
		assert.Equal(t, "application/offset+octet-stream", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "hello", string(body))
		w.Header().Set("Upload-Offset", "5")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Content-Type", "application/offset+octet-stream")

	resp, err := NewClient(log.NewLogger()).SendChunk(context.Background(), server.URL, header, []byte("hello"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Upload-Offset"))
}

func TestClient_DoesNotRetry(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("temporary error"))
	}))
	defer server.Close()

	resp, err := NewClient(log.NewLogger()).SendChunk(context.Background(), server.URL, http.Header{}, []byte("data"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "temporary error", resp.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewClient(log.NewLogger()).QueryOffset(ctx, server.URL, http.Header{})

	assert.Error(t, err)
}

func TestClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(log.NewLogger()).Create(context.Background(), url, http.Header{})

	assert.Error(t, err)
}

func TestClient_DumpRequestRedactsCredentials(t *testing.T) {
	client := NewClient(log.NewLogger())
	req, err := retryablehttp.NewRequest(http.MethodPost, "https://host/files", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Upload-Length", "10")

	dump := client.dumpRequest(req, true)

	assert.Contains(t, dump, "Authorization: [REDACTED]")
	assert.Contains(t, dump, "Upload-Length: 10")
	assert.NotContains(t, dump, "secret-token")
	assert.Equal(t, "Bearer secret-token", req.Header.Get("Authorization"))
}
