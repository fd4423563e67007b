package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"harvest_service/internal/domain/model"
	"harvest_service/internal/metrics"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// getJSON issues a GET and decodes a JSON body into out. Transport failures
// and non-200 statuses are SOURCE_UNAVAILABLE; undecodable bodies are
// MALFORMED_RESPONSE.
func getJSON(ctx context.Context, client *http.Client, source, url string, header http.Header, out any) (err error) {
	defer func() {
		metrics.SourceCallsTotal.WithLabelValues(source, metrics.Result(err)).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.ConfigurationError("failed to create %s request: %v", source, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return model.SourceUnavailable(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return model.SourceUnavailable(source, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return model.SourceUnavailable(source, err)
		}
		return model.MalformedResponse(source, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
