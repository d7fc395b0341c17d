package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aleksis/flipkit/internal/storage"
)

// MaxImages bounds the number of photos in one session.
const MaxImages = 5

// Precondition failures. All are detected before any I/O and are
// recoverable by correcting the session state.
var (
	ErrCapacityExceeded       = errors.New("image limit reached")
	ErrNoImages               = errors.New("no images in session")
	ErrMissingCredential      = errors.New("no inference credential configured")
	ErrEnhancementPending     = errors.New("image enhancement still in progress")
	ErrAnalysisInProgress     = errors.New("analysis already in progress")
	ErrEnhancementUnavailable = errors.New("enhanced image not available")
	ErrImageNotFound          = errors.New("image not found")
)

// EnhancementState is the per-image enhancement status.
type EnhancementState string

const (
	EnhancementPending   EnhancementState = "pending"
	EnhancementSucceeded EnhancementState = "succeeded"
	EnhancementFailed    EnhancementState = "failed"
)

// Stage is the pipeline stage of the session.
type Stage string

const (
	StageCapture   Stage = "capture"
	StageReviewing Stage = "reviewing"
	StageAnalyzing Stage = "analyzing"
	StageResulted  Stage = "resulted"
)

// ImageItem is one captured photo within a session. EnhancedBytes and
// EnhancedRef are populated asynchronously; Enhancement is succeeded iff
// both are set.
type ImageItem struct {
	ID            string
	OriginalBytes []byte
	OriginalRef   string
	EnhancedBytes []byte
	EnhancedRef   string
	Enhancement   EnhancementState
}

// EnhanceFunc is invoked once for each added image, outside the session
// lock. The implementation schedules the enhancement I/O without blocking
// and reports back through EnhancementCompleted.
type EnhanceFunc func(imageID string, original []byte)

// Session is the single in-progress analysis attempt. All mutation goes
// through its methods, which serialize on an internal mutex; enhancement
// completions arrive concurrently but each one only touches its own image
// by id.
type Session struct {
	mu sync.Mutex

	images        []*ImageItem
	selectedIndex int
	useEnhanced   map[string]bool
	stage         Stage
	streamBuf     strings.Builder
	lastError     string
	result        *storage.ListingDraft

	enhance EnhanceFunc
}

// New creates an empty session in the capture stage. The enhance callback
// may be nil, in which case added images stay pending until completed
// externally.
func New(enhance EnhanceFunc) *Session {
	return &Session{
		stage:       StageCapture,
		useEnhanced: make(map[string]bool),
		enhance:     enhance,
	}
}

// AddImage appends a captured photo and kicks off its enhancement without
// waiting for it. A nil byte slice yields an immediately failed item since
// there is nothing to enhance. Entering from capture moves the session to
// reviewing.
func (s *Session) AddImage(original []byte, displayRef string) (*ImageItem, error) {
	s.mu.Lock()

	if len(s.images) >= MaxImages {
		s.mu.Unlock()
		return nil, ErrCapacityExceeded
	}

	item := &ImageItem{
		ID:            uuid.New().String(),
		OriginalBytes: original,
		OriginalRef:   displayRef,
		Enhancement:   EnhancementPending,
	}
	s.useEnhanced[item.ID] = true
	if original == nil {
		item.Enhancement = EnhancementFailed
		s.useEnhanced[item.ID] = false
	}

	s.images = append(s.images, item)
	if s.stage == StageCapture {
		s.stage = StageReviewing
	}

	dispatch := s.enhance != nil && item.Enhancement == EnhancementPending
	snapshot := *item
	s.mu.Unlock()

	log.Debug().Str("imageID", item.ID).Str("ref", displayRef).Msg("image added to session")

	if dispatch {
		s.enhance(item.ID, original)
	}
	return &snapshot, nil
}

// EnhancementCompleted records the outcome of one image's enhancement. It is
// an idempotent no-op if the image was removed or already settled. A failure
// forces that image's selection flag to false so a non-existent enhanced
// image is never used.
func (s *Session) EnhancementCompleted(imageID string, enhanced []byte, enhancedRef string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(imageID)
	if item == nil || item.Enhancement != EnhancementPending {
		return
	}

	if err != nil || enhanced == nil {
		item.Enhancement = EnhancementFailed
		s.useEnhanced[imageID] = false
		log.Warn().Err(err).Str("imageID", imageID).Msg("image enhancement failed")
		return
	}

	item.EnhancedBytes = enhanced
	item.EnhancedRef = enhancedRef
	item.Enhancement = EnhancementSucceeded
	log.Debug().Str("imageID", imageID).Msg("image enhancement succeeded")
}

// RemoveImage drops an image from the session. Only legal while reviewing;
// a non-existent id is a no-op.
func (s *Session) RemoveImage(imageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StageReviewing {
		return
	}

	for i, item := range s.images {
		if item.ID == imageID {
			s.images = append(s.images[:i], s.images[i+1:]...)
			delete(s.useEnhanced, imageID)
			if s.selectedIndex >= len(s.images) && s.selectedIndex > 0 {
				s.selectedIndex = len(s.images) - 1
			}
			return
		}
	}
}

// ToggleSelection sets whether the enhanced or original image is persisted
// for this item. Only legal once that image's enhancement has succeeded.
func (s *Session) ToggleSelection(imageID string, useEnhanced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(imageID)
	if item == nil {
		return ErrImageNotFound
	}
	if item.Enhancement != EnhancementSucceeded {
		return ErrEnhancementUnavailable
	}

	s.useEnhanced[imageID] = useEnhanced
	return nil
}

// SelectImage moves the preview cursor; it does not affect analysis.
func (s *Session) SelectImage(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.images) {
		return
	}
	s.selectedIndex = index
}

// BeginAnalysis validates preconditions and enters the analyzing stage,
// clearing the stream buffer and last error. The credential is checked for
// presence only; its validity is the backend's call.
func (s *Session) BeginAnalysis(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == StageAnalyzing {
		return ErrAnalysisInProgress
	}
	for _, item := range s.images {
		if item.Enhancement == EnhancementPending {
			return ErrEnhancementPending
		}
	}
	if len(s.images) == 0 {
		return ErrNoImages
	}
	if credential == "" {
		return ErrMissingCredential
	}

	s.stage = StageAnalyzing
	s.streamBuf.Reset()
	s.lastError = ""
	log.Info().Int("imageCount", len(s.images)).Msg("analysis started")
	return nil
}

// AppendStreamChunk accumulates partial model output for live progress
// display. Ignored outside the analyzing stage.
func (s *Session) AppendStreamChunk(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StageAnalyzing {
		return
	}
	s.streamBuf.WriteString(text)
}

// CompleteAnalysis stores the produced draft and enters resulted.
func (s *Session) CompleteAnalysis(draft *storage.ListingDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = StageResulted
	s.result = draft
	s.streamBuf.Reset()
}

// FailAnalysis returns the session to reviewing with the failure message;
// the accumulated stream is discarded so a retry starts clean.
func (s *Session) FailAnalysis(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = StageReviewing
	s.lastError = message
	s.streamBuf.Reset()
	log.Warn().Str("reason", message).Msg("analysis failed")
}

// Reset discards everything and returns to capture.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = nil
	s.selectedIndex = 0
	s.useEnhanced = make(map[string]bool)
	s.stage = StageCapture
	s.streamBuf.Reset()
	s.lastError = ""
	s.result = nil
	log.Info().Msg("session reset")
}

// --- Accessors ---

// Stage returns the current pipeline stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Images returns a snapshot of the session's images in insertion order.
func (s *Session) Images() []ImageItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ImageItem, len(s.images))
	for i, item := range s.images {
		out[i] = *item
	}
	return out
}

// ImageCount returns the number of images in the session.
func (s *Session) ImageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// PendingCount returns how many images still have enhancement in flight.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.images {
		if item.Enhancement == EnhancementPending {
			n++
		}
	}
	return n
}

// UseEnhanced reports the selection flag for an image.
func (s *Session) UseEnhanced(imageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useEnhanced[imageID]
}

// SubmissionBytes returns the per-image byte buffers to submit for
// analysis: always the originals. Enhancement affects only what is
// displayed and persisted, never what the model sees. Images without
// original bytes are skipped.
func (s *Session) SubmissionBytes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]byte
	for _, item := range s.images {
		if item.OriginalBytes != nil {
			out = append(out, item.OriginalBytes)
		}
	}
	return out
}

// ChosenRefs returns the display references to persist, in submission
// order: the enhanced ref when selected and actually available, otherwise
// the original. The first entry is the draft's primary image.
func (s *Session) ChosenRefs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]string, 0, len(s.images))
	for _, item := range s.images {
		if s.useEnhanced[item.ID] && item.Enhancement == EnhancementSucceeded {
			refs = append(refs, item.EnhancedRef)
		} else {
			refs = append(refs, item.OriginalRef)
		}
	}
	return refs
}

// StreamBuffer returns the accumulated partial model output.
func (s *Session) StreamBuffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamBuf.String()
}

// LastError returns the last user-visible failure message.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Result returns the draft produced by the last completed analysis.
func (s *Session) Result() *storage.ListingDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SelectedIndex returns the preview cursor position.
func (s *Session) SelectedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIndex
}

func (s *Session) find(imageID string) *ImageItem {
	for _, item := range s.images {
		if item.ID == imageID {
			return item
		}
	}
	return nil
}
