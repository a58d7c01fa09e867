package engine

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
)

const (
	maxRetryAttempts   = 5
	retryBackoffBaseMS = 200
)

func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := time.Duration(1) << (attempt - 1)
	return retryBackoffBaseMS * time.Millisecond * factor
}

func debugURLsEnabled() bool {
	return strings.TrimSpace(os.Getenv("DEBUG_URLS")) == "1"
}

// curlEquivalent renders a request as the curl invocation that would
// reproduce it, for DEBUG_URLS logging.
func curlEquivalent(req *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(req.Method)
	b.WriteString(" '")
	b.WriteString(escapeSingleQuotes(req.URL.String()))
	b.WriteString("'")
	for name, values := range req.Header {
		for _, v := range values {
			b.WriteString(" -H '")
			b.WriteString(escapeSingleQuotes(name))
			b.WriteString(": ")
			b.WriteString(escapeSingleQuotes(v))
			b.WriteString("'")
		}
	}
	if len(body) > 0 {
		b.WriteString(" -d '")
		b.WriteString(escapeSingleQuotes(string(body)))
		b.WriteString("'")
	}
	return b.String()
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

// sendWithRetry issues build(), retrying on 5xx responses with exponential
// backoff up to maxRetryAttempts. build must produce a fresh, unconsumed
// request (and its body bytes, for DEBUG_URLS logging) on every call.
func sendWithRetry(ctx context.Context, client *http.Client, log logging.Logger, build func() (*http.Request, []byte, error)) (*http.Response, error) {
	var resp *http.Response
	for attempt := 1; ; attempt++ {
		req, body, err := build()
		if err != nil {
			return nil, err
		}

		if debugURLsEnabled() {
			log.Info("sending request", "curl", curlEquivalent(req, body))
		}

		resp, err = client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 && attempt < maxRetryAttempts {
			log.Warn("request failed with 5xx, retrying", "status", resp.StatusCode, "attempt", attempt, "max_attempts", maxRetryAttempts)
			resp.Body.Close()
			select {
			case <-time.After(retryBackoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return resp, nil
	}
}
