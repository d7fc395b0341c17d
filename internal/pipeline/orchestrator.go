package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aleksis/flipkit/internal/llm"
	"github.com/aleksis/flipkit/internal/pricing"
	"github.com/aleksis/flipkit/internal/session"
	"github.com/aleksis/flipkit/internal/storage"
)

// CredentialProvider supplies the inference credential. Injected explicitly
// so RunAnalysis is a function of its inputs, not ambient state.
type CredentialProvider interface {
	GetCredential() (string, error)
}

// Orchestrator drives one analysis attempt end-to-end: session preconditions,
// the inference call, field defaulting, pricing, and draft persistence. Any
// failure past the preconditions resolves into a FailAnalysis transition;
// the session is never left stuck in analyzing.
type Orchestrator struct {
	gateway   llm.Gateway
	estimator *pricing.Estimator
	store     storage.DraftStore
	creds     CredentialProvider

	streaming bool
	onDelta   func(text string)
}

// NewOrchestrator wires the pipeline. Streaming mode is on by default.
func NewOrchestrator(gateway llm.Gateway, estimator *pricing.Estimator, store storage.DraftStore, creds CredentialProvider) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		estimator: estimator,
		store:     store,
		creds:     creds,
		streaming: true,
	}
}

// WithStreaming toggles between the streaming and non-streaming gateway
// modes. Both produce identical results.
func (o *Orchestrator) WithStreaming(streaming bool) *Orchestrator {
	o.streaming = streaming
	return o
}

// WithDeltaObserver registers a callback invoked for each streamed delta,
// in addition to the session's stream buffer.
func (o *Orchestrator) WithDeltaObserver(fn func(text string)) *Orchestrator {
	o.onDelta = fn
	return o
}

// RunAnalysis executes the capture→enhance→analyze→persist pipeline for the
// session. Precondition violations abort before any network call and leave
// the session stage unchanged; later failures move it back to reviewing
// with the error message recorded.
func (o *Orchestrator) RunAnalysis(ctx context.Context, s *session.Session) (*storage.ListingDraft, error) {
	credential, err := o.creds.GetCredential()
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if err := s.BeginAnalysis(credential); err != nil {
		return nil, err
	}

	fields, err := o.analyze(ctx, s, credential)
	if err != nil {
		s.FailAnalysis(err.Error())
		return nil, err
	}

	llm.ApplyDefaults(fields)

	estimate := o.estimator.Estimate(fields.Brand, fields.Condition)

	draft := &storage.ListingDraft{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now(),
		ImageRefs:       s.ChosenRefs(),
		Brand:           fields.Brand,
		Category:        fields.Category,
		Title:           fields.Title,
		Material:        fields.Material,
		Condition:       fields.Condition,
		ConditionScore:  fields.ConditionScore,
		Flaws:           fields.Flaws,
		Description:     fields.Description,
		SellProbability: estimate.SellProbability,
		QuickSellPrice:  estimate.QuickSellPrice,
		MaxProfitPrice:  estimate.MaxProfitPrice,
		SuggestedPrice:  estimate.MaxProfitPrice,
	}

	if err := o.store.Put(draft); err != nil {
		s.FailAnalysis(fmt.Sprintf("failed to save draft: %v", err))
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	s.CompleteAnalysis(draft)
	log.Info().
		Str("draftID", draft.ID).
		Str("title", draft.Title).
		Int("suggestedPrice", draft.SuggestedPrice).
		Int("imageCount", len(draft.ImageRefs)).
		Msg("listing draft created")

	return draft, nil
}

// analyze performs the inference call in the configured mode and returns
// the parsed structured result.
func (o *Orchestrator) analyze(ctx context.Context, s *session.Session, credential string) (*llm.ListingFields, error) {
	images := s.SubmissionBytes()

	if !o.streaming {
		return o.gateway.Analyze(ctx, images, credential)
	}

	stream, err := o.gateway.AnalyzeStream(ctx, images, credential)
	if err != nil {
		return nil, err
	}

	// Deltas are forwarded to the session for live display and accumulated
	// here so the result can be reconstructed when the terminal event
	// carries no explicit payload.
	var buf strings.Builder
	var result *llm.ListingFields
	for ev := range stream.Events() {
		switch {
		case ev.Err != nil:
			return nil, ev.Err
		case ev.Terminal:
			result = ev.Result
		default:
			buf.WriteString(ev.Delta)
			s.AppendStreamChunk(ev.Delta)
			if o.onDelta != nil {
				o.onDelta(ev.Delta)
			}
		}
	}

	if result != nil {
		return result, nil
	}
	return llm.ParseListing(buf.String())
}
