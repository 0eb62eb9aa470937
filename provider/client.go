package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the HTTP provider clients.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *Limiter
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *Limiter
}

func newHTTPClient(opts Options) httpClient {
	c := opts.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 30 * time.Second}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(5)
	}
	return httpClient{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  c,
		limiter: limiter,
	}
}

// post marshals in, POSTs it to path and decodes the response into out.
// Network errors, timeouts, 429 and 5xx are wrapped with
// ErrServiceUnavailable so the retry controller treats them as transient.
func (c httpClient) post(ctx context.Context, path string, in, out interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer c.limiter.Release()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return errors.Join(ErrServiceUnavailable, err)
		}
		return errors.Join(ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		zerolog.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("path", path).Msg("provider returned retryable status")
		return errors.Join(ErrServiceUnavailable, fmt.Errorf("provider status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
