package reminder

import (
	"context"
	"errors"
)

// Announcer speaks text to the user. Delivery is fire-and-forget: a nil error
// only means the text was handed to the speech engine.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// Dialer opens a telephony intent for a phone number.
type Dialer interface {
	PlaceCall(ctx context.Context, phoneNumber string) error
}

// VoiceInput starts speech recognition. Listen fails if the recognizer cannot
// be started; callers wrap that failure in RecognitionStartError.
type VoiceInput interface {
	Listen(ctx context.Context, locale string) (Recognition, error)
}

// Recognition is one active listening session. Results delivers recognized
// utterances and Errors delivers mid-listen failures; either channel may be
// nil if the implementation never produces that signal. Close stops
// recognition and removes all listeners; it must be safe to call once after
// any outcome.
type Recognition interface {
	Results() <-chan string
	Errors() <-chan error
	Close() error
}

// AnnouncerFunc adapts a function to Announcer.
type AnnouncerFunc func(ctx context.Context, text string) error

func (f AnnouncerFunc) Announce(ctx context.Context, text string) error { return f(ctx, text) }

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, phoneNumber string) error

func (f DialerFunc) PlaceCall(ctx context.Context, phoneNumber string) error {
	return f(ctx, phoneNumber)
}

// RecognitionStartError reports that voice input could not be started.
type RecognitionStartError struct {
	Err error
}

func (e *RecognitionStartError) Error() string {
	if e.Err == nil {
		return "speech recognition start failed"
	}
	return "speech recognition start failed: " + e.Err.Error()
}

func (e *RecognitionStartError) Unwrap() error { return e.Err }

var (
	// ErrRecognitionClosed is reported when a session ends without a result or error.
	ErrRecognitionClosed = errors.New("speech recognition ended without result")

	ErrNoVoiceInput = errors.New("no voice input configured")
)

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(context.Context, string) error { return nil }

type nopDialer struct{}

func (nopDialer) PlaceCall(context.Context, string) error { return nil }

type noVoice struct{}

func (noVoice) Listen(context.Context, string) (Recognition, error) { return nil, ErrNoVoiceInput }
