package llm

// Event is one element of a streaming analysis response. Delta events carry
// partial content; exactly one terminal event (Result or Err set, or neither
// when the backend finished without an explicit result payload) ends the
// sequence.
type Event struct {
	Delta    string
	Result   *ListingFields
	Err      error
	Terminal bool
}

// Stream is a finite, single-pass, non-restartable sequence of analysis
// events. The channel returned by Events is closed after the terminal event.
type Stream struct {
	ch chan Event
}

func newStream() *Stream {
	return &Stream{ch: make(chan Event, 8)}
}

// Events returns the event channel. Consumption is append-only; the stream
// cannot be restarted.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

func (s *Stream) emitDelta(text string) {
	if text == "" {
		return
	}
	s.ch <- Event{Delta: text}
}

// finish emits the terminal event and closes the stream. Result may be nil
// when the backend omitted the explicit result payload; the consumer then
// reconstructs it from accumulated deltas.
func (s *Stream) finish(result *ListingFields, err error) {
	s.ch <- Event{Result: result, Err: err, Terminal: true}
	close(s.ch)
}
