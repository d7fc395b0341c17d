package enhance

import (
	"context"
	"errors"
)

var errDisabled = errors.New("enhancement disabled")

type disabled struct{}

func (disabled) Enhance(_ context.Context, _ []byte) (*Result, error) {
	return nil, errDisabled
}

// Disabled returns an Enhancer that fails every request. Images enhanced
// through it settle as failed immediately, so the pipeline proceeds with
// originals only.
func Disabled() Enhancer {
	return disabled{}
}
