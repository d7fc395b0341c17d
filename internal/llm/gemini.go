package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGateway implements Gateway directly against the Gemini API. The
// injected credential is the API key.
type GeminiGateway struct {
	model string
}

// NewGeminiGateway creates a Gemini-backed gateway. An empty model selects
// the default.
func NewGeminiGateway(model string) *GeminiGateway {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGateway{model: model}
}

func (g *GeminiGateway) contents(images [][]byte) []*genai.Content {
	parts := []*genai.Part{
		genai.NewPartFromText(systemPrompt + "\n\n" + userPhrase(len(images))),
	}
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: img, MIMEType: "image/jpeg"},
		})
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// AnalyzeStream implements streaming mode via GenerateContentStream. Each
// chunk becomes a delta event; the terminal result is parsed from the
// concatenated text.
func (g *GeminiGateway) AnalyzeStream(ctx context.Context, images [][]byte, credential string) (*Stream, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: credential})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	contents := g.contents(images)
	stream := newStream()

	go func() {
		var buf strings.Builder
		for resp, err := range client.Models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				stream.finish(nil, mapGeminiError(err))
				return
			}
			chunk := resp.Text()
			buf.WriteString(chunk)
			stream.emitDelta(chunk)
		}

		fields, err := ParseListing(buf.String())
		if err != nil {
			stream.finish(nil, err)
			return
		}
		log.Info().Str("model", g.model).Int("imageCount", len(images)).Msg("vision stream complete")
		stream.finish(fields, nil)
	}()

	return stream, nil
}

// Analyze implements non-streaming mode via a single GenerateContent call.
func (g *GeminiGateway) Analyze(ctx context.Context, images [][]byte, credential string) (*ListingFields, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: credential})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	result, err := client.Models.GenerateContent(ctx, g.model, g.contents(images), nil)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	log.Info().Str("model", g.model).Int("imageCount", len(images)).Msg("vision call complete")
	return ParseListing(result.Text())
}

func mapGeminiError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "API key") ||
		strings.Contains(msg, "UNAUTHENTICATED") ||
		strings.Contains(msg, "PERMISSION_DENIED") {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
