package enhance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Result is the enhancement endpoint's response: the visually improved
// image plus a normalized copy of the original.
type Result struct {
	EnhancedImage      []byte `json:"enhancedImage"`
	NormalizedOriginal []byte `json:"normalizedOriginal"`
}

// Enhancer is the pure image-to-image transform contract. It owns no state
// across calls.
type Enhancer interface {
	Enhance(ctx context.Context, raw []byte) (*Result, error)
}

// Client talks to the external enhancement endpoint. Any non-success
// response or transport error is a plain error; the session treats them all
// identically as a failed enhancement.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates an enhancement client. The timeout applies per call;
// expiry counts as a failed enhancement for that image only.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

type enhanceRequest struct {
	Image []byte `json:"image"`
}

type enhanceError struct {
	Error string `json:"error"`
}

// Enhance submits one raw image and returns the enhanced result.
func (c *Client) Enhance(ctx context.Context, raw []byte) (*Result, error) {
	var result Result
	var apiErr enhanceError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(enhanceRequest{Image: raw}).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.baseURL + "/enhance")
	if err != nil {
		return nil, fmt.Errorf("enhancement request failed: %w", err)
	}

	if resp.IsError() {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("enhancement failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("enhancement failed: status %d", resp.StatusCode())
	}

	if result.EnhancedImage == nil {
		return nil, fmt.Errorf("enhancement returned no image")
	}
	return &result, nil
}
