// Package stockapi talks to the retailer's structured box-detail API and
// turns its loosely-typed records into stock facts. The API has two
// equivalent hosts and no stable schema: fields come and go, numbers arrive
// as strings, and the envelope is sometimes absent.
package stockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/cascade"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/fetch"
)

// Box is one raw item-detail record. Kept untyped because the upstream
// schema is not guaranteed; the classifier applies the field-priority rules.
type Box map[string]interface{}

// Fetcher is the slice of the HTTP client the box API needs.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
}

type Client struct {
	fetcher   Fetcher
	templates []string
	runner    cascade.Runner
	log       *zap.Logger
}

// NewClient wires the endpoint templates (tried in order; %s is the SKU)
// behind the shared retry/fallback runner: two attempts per host with
// linear backoff, malformed payloads and error pages skip straight to the
// next host.
func NewClient(fetcher Fetcher, templates []string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		fetcher:   fetcher,
		templates: templates,
		runner: cascade.Runner{
			AttemptsPerSource: 2,
			BackoffStep:       150 * time.Millisecond,
			Permanent: func(err error) bool {
				return errors.Is(err, fetch.ErrMalformedPayload) ||
					errors.Is(err, fetch.ErrUpstreamErrorPage)
			},
		},
		log: log,
	}
}

// FetchBox returns the first well-formed item-detail record for a SKU, the
// upstream status code that produced it, and the raw body for diagnostics.
func (c *Client) FetchBox(ctx context.Context, sku string) (Box, int, []byte, error) {
	var (
		box    Box
		status int
		raw    []byte
	)
	err := c.runner.Run(ctx, len(c.templates), func(ctx context.Context, source int) error {
		url := fmt.Sprintf(c.templates[source], sku)
		body, code, ferr := c.fetcher.Get(ctx, url)
		if code != 0 {
			status = code
		}
		if ferr != nil {
			return ferr
		}
		boxes, derr := DecodeEnvelope(body)
		if derr != nil {
			c.log.Debug("box detail payload rejected",
				zap.String("sku", sku), zap.Int("source", source), zap.Error(derr))
			return derr
		}
		box = boxes[0]
		raw = body
		return nil
	})
	if err != nil {
		return nil, status, nil, err
	}
	return box, status, raw, nil
}

// DecodeEnvelope accepts both the wrapped envelope
// {"response":{"data":{"boxDetails":[...]}}} and a bare
// {"boxDetails":[...]}, and requires a non-empty detail array.
func DecodeEnvelope(body []byte) ([]Box, error) {
	var wrapped struct {
		Response struct {
			Data struct {
				BoxDetails []Box `json:"boxDetails"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Response.Data.BoxDetails) > 0 {
		return wrapped.Response.Data.BoxDetails, nil
	}

	var bare struct {
		BoxDetails []Box `json:"boxDetails"`
	}
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrMalformedPayload, err)
	}
	if len(bare.BoxDetails) == 0 {
		return nil, fmt.Errorf("%w: no boxDetails array", fetch.ErrMalformedPayload)
	}
	return bare.BoxDetails, nil
}
