package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heyalice-ai/alicepi/internal/logging"
)

func TestSendWithRetryRetriesOn5xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := sendWithRetry(context.Background(), srv.Client(), &logging.NoOpLogger{}, func() (*http.Request, []byte, error) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		return req, nil, err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSendWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := sendWithRetry(context.Background(), srv.Client(), &logging.NoOpLogger{}, func() (*http.Request, []byte, error) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		return req, nil, err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if attempts != maxRetryAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, maxRetryAttempts)
	}
}
