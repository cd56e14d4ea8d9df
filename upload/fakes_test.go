package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/bitrise-io/go-tusupload/network"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/mock"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	} else {
		return ""
	}
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type fakeTracker struct {
	mu     sync.Mutex
	events []string
}

func (t *fakeTracker) Enqueue(eventName string, properties ...analytics.Properties) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, eventName)
}

func (t *fakeTracker) Wait() {}

func (t *fakeTracker) factory() trackerFactory {
	return func(log.Logger, ...analytics.Properties) analytics.Tracker { return t }
}

// request is a request received by fakeTusServer.
type request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// fakeTusServer is a minimal in-memory tus server with a single upload resource.
type fakeTusServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []request
	data     []byte
	length   int64

	creationStatus int
	location       string
	mediaID        string
	// offsetSkew is added to the offset reported after a transfer.
	offsetSkew int64
}

func newFakeTusServer() *fakeTusServer {
	s := &fakeTusServer{
		creationStatus: http.StatusCreated,
		location:       "/files/upload-1",
		mediaID:        "media-1",
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *fakeTusServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	s.requests = append(s.requests, request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})

	if r.Header.Get("Tus-Resumable") != "1.0.0" {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	switch r.Method {
	case http.MethodPost:
		length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.length = length
		if s.location != "" {
			w.Header().Set("Location", s.location)
		}
		if s.mediaID != "" {
			w.Header().Set("stream-media-id", s.mediaID)
		}
		w.WriteHeader(s.creationStatus)
	case http.MethodHead:
		w.Header().Set("Upload-Offset", strconv.Itoa(len(s.data)))
		w.Header().Set("Upload-Length", strconv.FormatInt(s.length, 10))
		w.WriteHeader(http.StatusOK)
	case http.MethodPatch:
		if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		if r.Header.Get("Upload-Offset") != strconv.Itoa(len(s.data)) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		s.data = append(s.data, body...)
		w.Header().Set("Upload-Offset", strconv.FormatInt(int64(len(s.data))+s.offsetSkew, 10))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *fakeTusServer) requestsWithMethod(method string) []request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filtered []request
	for _, r := range s.requests {
		if r.Method == method {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (s *fakeTusServer) received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Create(ctx context.Context, url string, header http.Header) (*network.Response, error) {
	args := m.Called(ctx, url, header)
	resp, _ := args.Get(0).(*network.Response)
	return resp, args.Error(1)
}

func (m *mockTransport) QueryOffset(ctx context.Context, url string, header http.Header) (*network.Response, error) {
	args := m.Called(ctx, url, header)
	resp, _ := args.Get(0).(*network.Response)
	return resp, args.Error(1)
}

func (m *mockTransport) SendChunk(ctx context.Context, url string, header http.Header, body []byte) (*network.Response, error) {
	args := m.Called(ctx, url, header, body)
	resp, _ := args.Get(0).(*network.Response)
	return resp, args.Error(1)
}

func response(statusCode int, kv ...string) *network.Response {
	header := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		header.Set(kv[i], kv[i+1])
	}
	return &network.Response{StatusCode: statusCode, Header: header}
}

func withOffset(offset string) interface{} {
	return mock.MatchedBy(func(h http.Header) bool {
		return h.Get("Upload-Offset") == offset
	})
}
