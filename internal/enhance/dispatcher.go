package enhance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/aleksis/flipkit/internal/session"
)

// maxConcurrentEnhancements caps parallel calls to the enhancement endpoint.
const maxConcurrentEnhancements = 3

// Dispatcher fans enhancement requests out to the endpoint and feeds
// completions back to the session by image id. Requests for different
// images run concurrently and never wait for each other; each completion
// only settles its own image.
type Dispatcher struct {
	ctx      context.Context
	enhancer Enhancer
	outDir   string // when set, enhanced images are written here

	group *errgroup.Group
	sess  *session.Session
}

// NewDispatcher creates a dispatcher using the given enhancer. Bind the
// session with SetSession before dispatching; the two reference each other,
// so the session is attached after construction.
func NewDispatcher(ctx context.Context, enhancer Enhancer, outDir string) *Dispatcher {
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentEnhancements)
	return &Dispatcher{ctx: ctx, enhancer: enhancer, outDir: outDir, group: g}
}

// SetSession attaches the session that receives completions.
func (d *Dispatcher) SetSession(s *session.Session) {
	d.sess = s
}

// Dispatch is the session's EnhanceFunc. It runs the enhancement for one
// image and posts the per-id completion, success or failure alike.
func (d *Dispatcher) Dispatch(imageID string, original []byte) {
	d.group.Go(func() error {
		result, err := d.enhancer.Enhance(d.ctx, original)
		if err != nil {
			d.sess.EnhancementCompleted(imageID, nil, "", err)
			return nil
		}

		ref, err := d.storeEnhanced(imageID, result.EnhancedImage)
		if err != nil {
			log.Warn().Err(err).Str("imageID", imageID).Msg("failed to write enhanced image")
			d.sess.EnhancementCompleted(imageID, nil, "", err)
			return nil
		}

		d.sess.EnhancementCompleted(imageID, result.EnhancedImage, ref, nil)
		return nil
	})
}

// Wait blocks until all dispatched enhancements have completed.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// storeEnhanced persists the enhanced bytes as a file when an output
// directory is configured, so the display reference is a real local path.
// Otherwise a synthetic in-memory reference is returned.
func (d *Dispatcher) storeEnhanced(imageID string, enhanced []byte) (string, error) {
	if d.outDir == "" {
		return "enhanced:" + imageID, nil
	}

	path := filepath.Join(d.outDir, fmt.Sprintf("%s_enhanced.jpg", imageID))
	if err := os.WriteFile(path, enhanced, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
