package progress

import (
	"fmt"
	"sync"
)

// Frame is the envelope delivered to progress listeners. The envelope is
// strongly typed; Data is an open map for operation-specific extras.
type Frame struct {
	Kind    string                 `json:"kind"` // "progress", "complete" or "error"
	Percent int                    `json:"percent"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

const (
	KindProgress = "progress"
	KindComplete = "complete"
	KindError    = "error"
)

// frameBuffer bounds how far a slow listener may fall behind before
// frames are dropped. Sends never block.
const frameBuffer = 16

// Registry holds the active progress channels, keyed by a caller-supplied
// connection id. It is a best-effort side channel: sending to an absent
// or already-terminal channel is a silent no-op.
type Registry struct {
	mu       sync.Mutex
	channels map[string]chan Frame
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]chan Frame),
	}
}

// Open registers a new outbound channel for connectionID. A stale channel
// under the same id is closed and replaced, so a reconnecting caller can
// reuse its id.
func (r *Registry) Open(connectionID string) (<-chan Frame, error) {
	if connectionID == "" {
		return nil, fmt.Errorf("connection id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.channels[connectionID]; ok {
		close(old)
	}

	ch := make(chan Frame, frameBuffer)
	r.channels[connectionID] = ch
	return ch, nil
}

// Has reports whether a listener is registered for connectionID. Operation
// initiators use it to skip building progress state when nobody listens.
func (r *Registry) Has(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[connectionID]
	return ok
}

// SendProgress emits an advisory progress frame. Senders should keep
// percent non-decreasing within one logical operation.
func (r *Registry) SendProgress(connectionID string, percent int, message string, extra map[string]interface{}) {
	r.send(connectionID, Frame{
		Kind:    KindProgress,
		Percent: percent,
		Message: message,
		Data:    extra,
	}, false)
}

// SendComplete emits the terminal success frame and closes the channel.
func (r *Registry) SendComplete(connectionID string, data map[string]interface{}) {
	r.send(connectionID, Frame{
		Kind:    KindComplete,
		Percent: 100,
		Data:    data,
	}, true)
}

// SendError emits the terminal failure frame and closes the channel.
func (r *Registry) SendError(connectionID string, message string, extra map[string]interface{}) {
	r.send(connectionID, Frame{
		Kind:    KindError,
		Message: message,
		Data:    extra,
	}, true)
}

// Close tears the channel down without a terminal frame, e.g. on caller
// disconnect. Closing an unknown id is a no-op.
func (r *Registry) Close(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[connectionID]; ok {
		close(ch)
		delete(r.channels, connectionID)
	}
}

// Detach is Close scoped to one registration: it tears the channel down
// only if ch is still the one registered under connectionID. A reconnect
// replaces the channel under the same id, and the replaced connection's
// late teardown must not touch the replacement.
func (r *Registry) Detach(connectionID string, ch <-chan Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.channels[connectionID]
	if !ok || cur != ch {
		return
	}
	close(cur)
	delete(r.channels, connectionID)
}

func (r *Registry) send(connectionID string, frame Frame, terminal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[connectionID]
	if !ok {
		// No listener: drop the frame. Progress reporting must never
		// fail the operation that reports it.
		return
	}

	select {
	case ch <- frame:
	default:
		// Listener is not draining; drop rather than stall the sender.
	}

	if terminal {
		close(ch)
		delete(r.channels, connectionID)
	}
}
