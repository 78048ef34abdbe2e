package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"paperlens/internal/models"
)

const heartbeatInterval = 30 * time.Second

// eventStream is the per-request server-sent event session. Writes are
// serialized under a mutex so a heartbeat can never interleave with a
// partially written data frame, and every write is flushed immediately —
// nothing is buffered for replay.
type eventStream struct {
	ctx     context.Context
	w       io.Writer
	flusher http.Flusher

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

func newEventStream(ctx context.Context, w io.Writer, flusher http.Flusher) *eventStream {
	return &eventStream{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
}

// Send writes one data frame. After client disconnect it refuses further
// writes so no deltas are forwarded to a dead connection.
func (s *eventStream) Send(event models.StreamEvent) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) comment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, ": heartbeat\n\n"); err != nil {
		return
	}
	s.flusher.Flush()
}

// StartHeartbeat emits comment frames on the interval until the session
// closes or the client disconnects, keeping intermediaries from timing out
// an idle connection during a long-running analysis.
func (s *eventStream) StartHeartbeat(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.comment()
			}
		}
	}()
}

// Close stops the heartbeat. Safe to call more than once.
func (s *eventStream) Close() {
	s.once.Do(func() { close(s.done) })
}
