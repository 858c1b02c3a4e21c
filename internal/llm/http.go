package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxOutputTokens caps every completion; evaluation answers are short JSON objects.
const maxOutputTokens = 512

// postJSON sends payload to url and returns the raw response body.
// Transport failures and non-2xx statuses come back as *CompletionError.
func postJSON(ctx context.Context, client *http.Client, p Provider, model, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, completionErr(p, model, 0, "failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, completionErr(p, model, 0, "failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, completionErr(p, model, 0, "network error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, completionErr(p, model, resp.StatusCode, "failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(p, model, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func statusError(p Provider, model string, status int, body []byte) *CompletionError {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return completionErr(p, model, status, "invalid API key (HTTP %d)", status)
	case http.StatusNotFound:
		return completionErr(p, model, status, "model %s not found or not available for inference", model)
	case http.StatusTooManyRequests:
		return completionErr(p, model, status, "rate limit exceeded, try again later")
	}
	return completionErr(p, model, status, "HTTP %d: %s", status, truncate(strings.TrimSpace(string(body)), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": fmt.Sprintf("Bearer %s", token)}
}
