package llm

import "context"

// MockGateway is a scripted Gateway for tests. AnalyzeStream replays Events
// in order; Analyze returns Fields. If no event is terminal, the stream
// finishes with an empty terminal event so consumers exercise the
// delta-reconstruction path.
type MockGateway struct {
	Events []Event
	Fields *ListingFields
	Err    error

	LastImages     [][]byte
	LastCredential string
}

func (m *MockGateway) AnalyzeStream(_ context.Context, images [][]byte, credential string) (*Stream, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}
	m.LastImages = images
	m.LastCredential = credential
	if m.Err != nil {
		return nil, m.Err
	}

	stream := newStream()
	go func() {
		for _, ev := range m.Events {
			if ev.Terminal || ev.Err != nil {
				stream.finish(ev.Result, ev.Err)
				return
			}
			stream.emitDelta(ev.Delta)
		}
		stream.finish(nil, nil)
	}()
	return stream, nil
}

func (m *MockGateway) Analyze(_ context.Context, images [][]byte, credential string) (*ListingFields, error) {
	if len(images) == 0 || credential == "" {
		return nil, ErrEmpty
	}
	m.LastImages = images
	m.LastCredential = credential
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Fields, nil
}
