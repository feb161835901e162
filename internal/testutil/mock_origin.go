// Package testutil provides testing utilities for the image cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// PNGHeader is the 8-byte PNG signature, enough for content sniffing.
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// MockOriginResponse defines the behavior for a mock image origin response.
type MockOriginResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Delay      time.Duration

	// Gate, when set, holds the response until the channel is closed.
	Gate <-chan struct{}
}

// MockOrigin is a configurable mock image origin for testing.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// ImageURL returns the absolute URL for path on the mock server.
func (m *MockOrigin) ImageURL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockOriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Gate != nil {
			select {
			case <-resp.Gate:
			case <-r.Context().Done():
				return
			}
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made for path.
func (m *MockOrigin) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockOrigin) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// NewImageResponse creates a 200 OK response declaring an image content type.
func NewImageResponse(data []byte) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "image/png",
		},
	}
}

// NewUntypedResponse creates a 200 OK response without a Content-Type header.
func NewUntypedResponse(data []byte) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       data,
	}
}

// NewHTMLResponse creates a 200 OK response with a non-image content type.
func NewHTMLResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body:       []byte("<html><body>not an image</body></html>"),
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusNotFound,
		Body:       []byte("not found"),
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       []byte("internal server error"),
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewEmptyResponse creates a 200 OK image response without a body.
func NewEmptyResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": "image/png",
		},
	}
}
