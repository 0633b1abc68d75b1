// Package webhook forwards extracted queries to bot endpoints over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 512
	userAgent             = "tq-webhook/1"
)

type Deliverer struct {
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.Deliverer = Deliverer{}

// Deliver POSTs payload as JSON. Any transport error or non-2xx status is
// reported as domain.ErrDeliveryFailed.
func (d Deliverer) Deliver(ctx context.Context, endpoint string, payload domain.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEndpoint(endpoint); err != nil {
		return fmt.Errorf("deliver query: %w", errors.Join(domain.ErrDeliveryFailed, err))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	requestCtx, cancel := d.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create delivery request: %w", errors.Join(domain.ErrDeliveryFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("deliver query: %w", errors.Join(domain.ErrDeliveryFailed, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("deliver query: %w: %s", domain.ErrDeliveryFailed, describeFailure(resp))
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	return nil
}

func (d Deliverer) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d Deliverer) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := d.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

func describeFailure(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
