package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// analyzeRequest is the wire shape shared by the streaming and non-streaming
// analysis endpoints. Image payloads are base64-encoded by the JSON encoder.
type analyzeRequest struct {
	Images     [][]byte `json:"images"`
	Credential string   `json:"credential"`
	System     string   `json:"system"`
	Message    string   `json:"message"`
}

// streamEvent is one server-sent event line from the streaming endpoint.
// The terminal event is marked done; its result payload may be absent.
type streamEvent struct {
	Delta  string          `json:"delta,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Done   bool            `json:"done,omitempty"`
}

// HTTPGateway talks to the analysis backend over HTTP: an SSE endpoint for
// streaming mode and a plain JSON endpoint for non-streaming mode.
type HTTPGateway struct {
	client    *resty.Client
	streamURL string
	plainURL  string
}

// NewHTTPGateway creates a gateway for the given endpoint URLs. The timeout
// covers the whole call including body streaming; expiry surfaces as
// ErrTransport.
func NewHTTPGateway(streamURL, plainURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		client:    resty.New().SetTimeout(timeout),
		streamURL: streamURL,
		plainURL:  plainURL,
	}
}

// AnalyzeStream implements Gateway over the SSE endpoint.
func (g *HTTPGateway) AnalyzeStream(ctx context.Context, images [][]byte, credential string) (*Stream, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(analyzeRequest{
			Images:     images,
			Credential: credential,
			System:     systemPrompt,
			Message:    userPhrase(len(images)),
		}).
		SetDoNotParseResponse(true).
		Post(g.streamURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if err := statusToError(resp.StatusCode()); err != nil {
		resp.RawBody().Close()
		return nil, err
	}

	stream := newStream()
	go g.consumeSSE(resp, stream)
	return stream, nil
}

// consumeSSE reads "data: " lines from the response body and translates them
// into stream events. The body is closed when the stream finishes.
func (g *HTTPGateway) consumeSSE(resp *resty.Response, stream *Stream) {
	body := resp.RawBody()
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			stream.finish(nil, fmt.Errorf("%w: bad event payload: %v", ErrMalformedResponse, err))
			return
		}

		// An error event is fatal regardless of done.
		if ev.Error != "" {
			stream.finish(nil, fmt.Errorf("%w: %s", ErrTransport, ev.Error))
			return
		}

		if ev.Delta != "" {
			stream.emitDelta(ev.Delta)
		}

		if ev.Done {
			stream.finish(parseTerminalResult(ev.Result))
			return
		}
	}

	// The stream ended without a terminal event: interrupted.
	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("stream closed before completion")
	}
	stream.finish(nil, fmt.Errorf("%w: %v", ErrTransport, err))
}

// parseTerminalResult decodes the optional result payload of the terminal
// event. An absent payload is fine; the consumer reconstructs the result
// from accumulated deltas.
func parseTerminalResult(raw json.RawMessage) (*ListingFields, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var fields ListingFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: bad terminal result: %v", ErrMalformedResponse, err)
	}
	return &fields, nil
}

// Analyze implements the non-streaming mode against the plain endpoint.
// Parsing rules are identical to the streaming path.
func (g *HTTPGateway) Analyze(ctx context.Context, images [][]byte, credential string) (*ListingFields, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(analyzeRequest{
			Images:     images,
			Credential: credential,
			System:     systemPromptBasic,
			Message:    userPhrase(len(images)),
		}).
		Post(g.plainURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if err := statusToError(resp.StatusCode()); err != nil {
		log.Warn().Int("status", resp.StatusCode()).Msg("analysis endpoint rejected request")
		return nil, err
	}

	return ParseListing(resp.String())
}

func statusToError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrInvalidCredential
	case code >= 400:
		return fmt.Errorf("%w: status %d", ErrTransport, code)
	}
	return nil
}
