package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addImages(t *testing.T, s *Session, n int) []ImageItem {
	t.Helper()
	items := make([]ImageItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := s.AddImage([]byte{0xff, byte(i)}, "photo")
		require.NoError(t, err)
		items = append(items, *item)
	}
	return items
}

func TestAddImage_Capacity(t *testing.T) {
	s := New(nil)

	for i := 0; i < MaxImages; i++ {
		_, err := s.AddImage([]byte{byte(i)}, "photo")
		require.NoError(t, err)
	}

	_, err := s.AddImage([]byte{0xee}, "photo")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, MaxImages, s.ImageCount())
}

func TestAddImage_TransitionsCaptureToReviewing(t *testing.T) {
	s := New(nil)
	assert.Equal(t, StageCapture, s.Stage())

	addImages(t, s, 1)
	assert.Equal(t, StageReviewing, s.Stage())
}

func TestAddImage_NilBytesFailsImmediately(t *testing.T) {
	s := New(nil)

	item, err := s.AddImage(nil, "broken")
	require.NoError(t, err)

	images := s.Images()
	require.Len(t, images, 1)
	assert.Equal(t, EnhancementFailed, images[0].Enhancement)
	assert.False(t, s.UseEnhanced(item.ID))
}

func TestAddImage_DispatchesEnhancement(t *testing.T) {
	dispatched := make(chan string, 1)
	s := New(func(imageID string, original []byte) {
		dispatched <- imageID
	})

	item, err := s.AddImage([]byte{1}, "photo")
	require.NoError(t, err)

	select {
	case id := <-dispatched:
		assert.Equal(t, item.ID, id)
	case <-time.After(time.Second):
		t.Fatal("enhancement was not dispatched")
	}
}

func TestEnhancementCompleted_Success(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)

	s.EnhancementCompleted(items[0].ID, []byte("enhanced"), "enhanced-ref", nil)

	images := s.Images()
	assert.Equal(t, EnhancementSucceeded, images[0].Enhancement)
	assert.Equal(t, "enhanced-ref", images[0].EnhancedRef)
	assert.True(t, s.UseEnhanced(items[0].ID))
}

func TestEnhancementCompleted_FailureForcesOriginal(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)

	s.EnhancementCompleted(items[0].ID, nil, "", errors.New("endpoint down"))

	images := s.Images()
	assert.Equal(t, EnhancementFailed, images[0].Enhancement)
	assert.False(t, s.UseEnhanced(items[0].ID))
}

func TestEnhancementCompleted_IdempotentAfterRemoval(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 2)

	s.RemoveImage(items[0].ID)
	s.EnhancementCompleted(items[0].ID, []byte("late"), "late-ref", nil)

	assert.Equal(t, 1, s.ImageCount())
}

func TestEnhancementCompleted_SingleTransition(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)

	s.EnhancementCompleted(items[0].ID, []byte("first"), "first-ref", nil)
	// A duplicate completion must not overwrite the settled state.
	s.EnhancementCompleted(items[0].ID, nil, "", errors.New("late failure"))

	images := s.Images()
	assert.Equal(t, EnhancementSucceeded, images[0].Enhancement)
	assert.Equal(t, "first-ref", images[0].EnhancedRef)
}

func TestEnhancementCompleted_ConcurrentPerImage(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, MaxImages)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(id string, fail bool) {
			defer wg.Done()
			if fail {
				s.EnhancementCompleted(id, nil, "", errors.New("boom"))
			} else {
				s.EnhancementCompleted(id, []byte("ok"), "ref", nil)
			}
		}(item.ID, i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, 0, s.PendingCount())
}

func TestRemoveImage_NonExistentIsNoop(t *testing.T) {
	s := New(nil)
	addImages(t, s, 3)

	s.RemoveImage("does-not-exist")
	assert.Equal(t, 3, s.ImageCount())
}

func TestRemoveImage_ClampsSelectedIndex(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 3)
	s.SelectImage(2)

	s.RemoveImage(items[2].ID)
	assert.Equal(t, 1, s.SelectedIndex())
}

func TestRemoveImage_OnlyWhileReviewing(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)
	require.NoError(t, s.BeginAnalysis("key"))

	s.RemoveImage(items[0].ID)
	assert.Equal(t, 1, s.ImageCount())
}

func TestToggleSelection_RejectedWhenNotSucceeded(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)

	err := s.ToggleSelection(items[0].ID, false)
	assert.ErrorIs(t, err, ErrEnhancementUnavailable)
	assert.True(t, s.UseEnhanced(items[0].ID))

	err = s.ToggleSelection("missing", false)
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestToggleSelection_AfterSuccess(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)

	require.NoError(t, s.ToggleSelection(items[0].ID, false))
	assert.False(t, s.UseEnhanced(items[0].ID))

	require.NoError(t, s.ToggleSelection(items[0].ID, true))
	assert.True(t, s.UseEnhanced(items[0].ID))
}

func TestBeginAnalysis_EnhancementPending(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 2)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)

	err := s.BeginAnalysis("key")
	assert.ErrorIs(t, err, ErrEnhancementPending)

	// Once the last image settles, analysis may start.
	s.EnhancementCompleted(items[1].ID, nil, "", errors.New("fail"))
	require.NoError(t, s.BeginAnalysis("key"))
	assert.Equal(t, StageAnalyzing, s.Stage())
}

func TestBeginAnalysis_NoImages(t *testing.T) {
	s := New(nil)
	err := s.BeginAnalysis("key")
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestBeginAnalysis_MissingCredential(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)

	err := s.BeginAnalysis("")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, StageReviewing, s.Stage())
}

func TestBeginAnalysis_RejectedWhileInProgress(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)
	require.NoError(t, s.BeginAnalysis("key"))

	err := s.BeginAnalysis("key")
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
}

func TestBeginAnalysis_ClearsBufferAndError(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 1)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)

	require.NoError(t, s.BeginAnalysis("key"))
	s.AppendStreamChunk("partial")
	s.FailAnalysis("transport failure")

	assert.Equal(t, StageReviewing, s.Stage())
	assert.Equal(t, "transport failure", s.LastError())
	assert.Empty(t, s.StreamBuffer())

	require.NoError(t, s.BeginAnalysis("key"))
	assert.Empty(t, s.LastError())
}

func TestAppendStreamChunk_OnlyWhileAnalyzing(t *testing.T) {
	s := New(nil)
	addImages(t, s, 1)

	s.AppendStreamChunk("ignored")
	assert.Empty(t, s.StreamBuffer())
}

func TestSubmissionBytes_AlwaysOriginals(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 2)
	s.EnhancementCompleted(items[0].ID, []byte("enhanced"), "ref", nil)
	s.EnhancementCompleted(items[1].ID, []byte("enhanced"), "ref", nil)

	for i, buf := range s.SubmissionBytes() {
		assert.Equal(t, []byte{0xff, byte(i)}, buf)
	}
}

func TestChosenRefs_EnhancedOnlyWhenAvailable(t *testing.T) {
	s := New(nil)

	a, err := s.AddImage([]byte{1}, "a.jpg")
	require.NoError(t, err)
	b, err := s.AddImage([]byte{2}, "b.jpg")
	require.NoError(t, err)

	s.EnhancementCompleted(a.ID, []byte("ok"), "a_enhanced.jpg", nil)
	s.EnhancementCompleted(b.ID, nil, "", errors.New("fail"))

	assert.Equal(t, []string{"a_enhanced.jpg", "b.jpg"}, s.ChosenRefs())
}

func TestReset(t *testing.T) {
	s := New(nil)
	items := addImages(t, s, 2)
	s.EnhancementCompleted(items[0].ID, []byte("ok"), "ref", nil)
	s.FailAnalysis("something broke")

	s.Reset()

	assert.Equal(t, StageCapture, s.Stage())
	assert.Equal(t, 0, s.ImageCount())
	assert.Empty(t, s.LastError())
	assert.Nil(t, s.Result())
}
