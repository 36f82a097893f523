// Package voice adapts text-based channels (a terminal, a chat) to the
// reminder speech ports. A Router hands each incoming line either to the
// active listening session or back to the caller as a command.
package voice

import (
	"context"
	"errors"
	"sync"

	"voxremind/internal/reminder"
)

// ErrBusy is returned by Listen while another session is open.
var ErrBusy = errors.New("voice input already listening")

// Router is a reminder.VoiceInput fed by Feed.
type Router struct {
	mu     sync.Mutex
	active *session
	closed error
}

var _ reminder.VoiceInput = (*Router)(nil)

func NewRouter() *Router { return &Router{} }

// Listen opens a session that receives the next fed line. The locale is
// ignored: text channels are already transcribed.
func (r *Router) Listen(ctx context.Context, _ string) (reminder.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed != nil {
		return nil, r.closed
	}
	if r.active != nil {
		return nil, ErrBusy
	}
	s := &session{router: r, results: make(chan string, 1), errs: make(chan error, 1)}
	r.active = s
	return s, nil
}

// Feed delivers text to the active session. It reports false when nobody is
// listening, in which case the caller should treat text as a command.
func (r *Router) Feed(text string) bool {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()
	if s == nil {
		return false
	}
	s.results <- text
	return true
}

// Listening reports whether a session is waiting for input.
func (r *Router) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Fail reports err to the active session (if any) and makes later Listen
// calls fail with it. Used when the underlying channel ends.
func (r *Router) Fail(err error) {
	if err == nil {
		err = reminder.ErrRecognitionClosed
	}
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.closed = err
	r.mu.Unlock()
	if s != nil {
		s.errs <- err
	}
}

func (r *Router) release(s *session) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

// session channels are buffered and written at most once (Feed and Fail
// detach the session before sending), so delivery never blocks.
type session struct {
	router  *Router
	results chan string
	errs    chan error
	once    sync.Once
}

func (s *session) Results() <-chan string { return s.results }
func (s *session) Errors() <-chan error   { return s.errs }

func (s *session) Close() error {
	s.once.Do(func() { s.router.release(s) })
	return nil
}
