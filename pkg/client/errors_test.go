package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		contains []string
	}{
		{
			name: "status error",
			err: &FetchError{
				URL:        "https://x/a.png",
				StatusCode: 404,
				ErrorClass: ErrorClassStatus,
			},
			contains: []string{"https://x/a.png", "404"},
		},
		{
			name: "content type error",
			err: &FetchError{
				URL:         "https://x/a.png",
				StatusCode:  200,
				ContentType: "text/html",
				ErrorClass:  ErrorClassContentType,
			},
			contains: []string{"text/html"},
		},
		{
			name: "transport error with cause",
			err: &FetchError{
				URL:        "https://x/a.png",
				ErrorClass: ErrorClassTransport,
				Err:        errors.New("connection reset"),
			},
			contains: []string{"transport", "connection reset"},
		},
		{
			name: "too large without cause",
			err: &FetchError{
				URL:        "https://x/a.png",
				ErrorClass: ErrorClassTooLarge,
			},
			contains: []string{"too_large"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("wrapped: %w", &FetchError{ErrorClass: ErrorClassTransport, Err: cause})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should find the transport cause")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("errors.As should find the FetchError")
	}
	if fe.ErrorClass != ErrorClassTransport {
		t.Errorf("ErrorClass = %v, want %v", fe.ErrorClass, ErrorClassTransport)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &FetchError{ErrorClass: ErrorClassTransport}, true},
		{"server error", &FetchError{ErrorClass: ErrorClassStatus, StatusCode: 503}, true},
		{"too many requests", &FetchError{ErrorClass: ErrorClassStatus, StatusCode: 429}, true},
		{"not found", &FetchError{ErrorClass: ErrorClassStatus, StatusCode: 404}, false},
		{"content type", &FetchError{ErrorClass: ErrorClassContentType}, false},
		{"empty body", &FetchError{ErrorClass: ErrorClassEmptyBody}, false},
		{"too large", &FetchError{ErrorClass: ErrorClassTooLarge}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	if got := classOf(&FetchError{ErrorClass: ErrorClassEmptyBody}); got != ErrorClassEmptyBody {
		t.Errorf("classOf() = %q, want %q", got, ErrorClassEmptyBody)
	}
	if got := classOf(errors.New("plain")); got != "" {
		t.Errorf("classOf(plain) = %q, want empty", got)
	}
}
