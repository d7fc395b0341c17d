package enhance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleksis/flipkit/internal/session"
)

type scriptedEnhancer struct {
	results map[string]*Result // keyed by original bytes
	err     error
}

func (s *scriptedEnhancer) Enhance(_ context.Context, raw []byte) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results[string(raw)], nil
}

func TestDispatch_SettlesEachImageIndependently(t *testing.T) {
	enhancer := &scriptedEnhancer{results: map[string]*Result{
		"orig-1": {EnhancedImage: []byte("enh-1")},
		"orig-2": {EnhancedImage: []byte("enh-2")},
	}}
	d := NewDispatcher(context.Background(), enhancer, "")
	sess := session.New(d.Dispatch)
	d.SetSession(sess)

	first, err := sess.AddImage([]byte("orig-1"), "one.jpg")
	require.NoError(t, err)
	_, err = sess.AddImage([]byte("orig-2"), "two.jpg")
	require.NoError(t, err)

	d.Wait()

	assert.Equal(t, 0, sess.PendingCount())
	for _, img := range sess.Images() {
		assert.Equal(t, session.EnhancementSucceeded, img.Enhancement)
	}
	assert.Equal(t, "enhanced:"+first.ID, sess.Images()[0].EnhancedRef)
}

func TestDispatch_FailureSettlesAsFailed(t *testing.T) {
	d := NewDispatcher(context.Background(), &scriptedEnhancer{err: errors.New("endpoint down")}, "")
	sess := session.New(d.Dispatch)
	d.SetSession(sess)

	_, err := sess.AddImage([]byte("orig-1"), "one.jpg")
	require.NoError(t, err)

	d.Wait()

	assert.Equal(t, 0, sess.PendingCount())
	assert.Equal(t, session.EnhancementFailed, sess.Images()[0].Enhancement)

	// A failed image still flows through analysis with its original.
	assert.Equal(t, [][]byte{[]byte("orig-1")}, sess.SubmissionBytes())
	assert.Equal(t, []string{"one.jpg"}, sess.ChosenRefs())
}

func TestDispatch_WritesEnhancedFile(t *testing.T) {
	dir := t.TempDir()
	enhancer := &scriptedEnhancer{results: map[string]*Result{
		"orig-1": {EnhancedImage: []byte("enh-bytes")},
	}}
	d := NewDispatcher(context.Background(), enhancer, dir)
	sess := session.New(d.Dispatch)
	d.SetSession(sess)

	img, err := sess.AddImage([]byte("orig-1"), "one.jpg")
	require.NoError(t, err)

	d.Wait()

	path := filepath.Join(dir, img.ID+"_enhanced.jpg")
	assert.Equal(t, path, sess.Images()[0].EnhancedRef)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("enh-bytes"), data)
}
