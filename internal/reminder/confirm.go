package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voxremind/internal/clock"
	logx "voxremind/pkg/logx"
)

// DefaultConfirmTimeout bounds how long the confirmation waits for an answer.
const DefaultConfirmTimeout = 7 * time.Second

const (
	msgCallDeclined = "Okay, call cancelled."
	msgNotCaught    = "Sorry, I did not catch that."
	msgNoResponse   = "No response received. Call cancelled."
)

func callPrompt(contact string) string {
	return fmt.Sprintf("Do you want to call %s? Say yes or no.", contact)
}

func callingText(contact string) string { return "Calling " + contact }

// Outcome is the result of one call confirmation.
type Outcome int

const (
	// OutcomeCalled: the user said yes and the dialer was invoked.
	OutcomeCalled Outcome = iota
	// OutcomeDeclined: the user answered without saying yes.
	OutcomeDeclined
	// OutcomeRecognitionError: recognition failed to start or failed mid-listen.
	OutcomeRecognitionError
	// OutcomeTimeout: nothing was heard before the timeout.
	OutcomeTimeout
	// OutcomeAborted: the scheduler was stopped while the confirmation was in flight.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCalled:
		return "called"
	case OutcomeDeclined:
		return "declined"
	case OutcomeRecognitionError:
		return "recognition_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ConfirmResult describes how a confirmation resolved.
type ConfirmResult struct {
	Outcome Outcome
	// Heard is the recognized utterance (OutcomeCalled, OutcomeDeclined).
	Heard string
	// Err is the recognition or dialer error, if any.
	Err error
}

// Confirmer runs the spoken yes/no exchange that gates a call.
type Confirmer struct {
	Clock     clock.Clock
	Announcer Announcer
	Voice     VoiceInput
	Dialer    Dialer
	Timeout   time.Duration
	Locale    string
	Log       logx.Logger
}

// Confirm asks whether to call t's contact and acts on the first of: a
// recognized answer, a recognition error, the timeout, or ctx cancellation.
// The recognition session and the timer are released before Confirm returns,
// whichever branch wins.
func (c *Confirmer) Confirm(ctx context.Context, t Task) ConfirmResult {
	log := c.Log.With(logx.String("task", t.ID), logx.String("contact", t.ContactName))

	c.say(ctx, log, callPrompt(t.ContactName))

	if err := ctx.Err(); err != nil {
		log.Debug("confirmation aborted before listening", logx.Err(err))
		return ConfirmResult{Outcome: OutcomeAborted, Err: err}
	}
	rec, err := c.Voice.Listen(ctx, c.Locale)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			log.Debug("confirmation aborted while starting voice input", logx.Err(err))
			return ConfirmResult{Outcome: OutcomeAborted, Err: cerr}
		}
		serr := &RecognitionStartError{Err: err}
		log.Warn("voice input start failed", logx.Err(serr))
		c.say(ctx, log, msgNotCaught)
		return ConfirmResult{Outcome: OutcomeRecognitionError, Err: serr}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	timer := c.Clock.NewTimer(timeout)

	res := c.race(ctx, rec, timer)
	timer.Stop()
	if cerr := rec.Close(); cerr != nil {
		log.Debug("voice input close failed", logx.Err(cerr))
	}

	switch res.Outcome {
	case OutcomeCalled:
		c.say(ctx, log, callingText(t.ContactName))
		if err := c.Dialer.PlaceCall(ctx, t.PhoneNumber); err != nil {
			log.Warn("place call failed", logx.String("phone", t.PhoneNumber), logx.Err(err))
			res.Err = err
		}
	case OutcomeDeclined:
		c.say(ctx, log, msgCallDeclined)
	case OutcomeRecognitionError:
		log.Warn("voice input error", logx.Err(res.Err))
		c.say(ctx, log, msgNotCaught)
	case OutcomeTimeout:
		c.say(ctx, log, msgNoResponse)
	case OutcomeAborted:
		log.Debug("confirmation aborted", logx.Err(res.Err))
	}
	log.Info("call confirmation resolved", logx.String("outcome", res.Outcome.String()), logx.String("heard", res.Heard))
	return res
}

func (c *Confirmer) race(ctx context.Context, rec Recognition, timer clock.Timer) ConfirmResult {
	select {
	case text, ok := <-rec.Results():
		if !ok {
			return ConfirmResult{Outcome: OutcomeRecognitionError, Err: ErrRecognitionClosed}
		}
		if isAffirmative(text) {
			return ConfirmResult{Outcome: OutcomeCalled, Heard: text}
		}
		return ConfirmResult{Outcome: OutcomeDeclined, Heard: text}
	case err, ok := <-rec.Errors():
		if !ok || err == nil {
			err = ErrRecognitionClosed
		}
		return ConfirmResult{Outcome: OutcomeRecognitionError, Err: err}
	case <-timer.C():
		return ConfirmResult{Outcome: OutcomeTimeout}
	case <-ctx.Done():
		return ConfirmResult{Outcome: OutcomeAborted, Err: ctx.Err()}
	}
}

// isAffirmative matches "yes" anywhere in the utterance, case-insensitively.
func isAffirmative(text string) bool {
	return strings.Contains(strings.ToLower(text), "yes")
}

func (c *Confirmer) say(ctx context.Context, log logx.Logger, text string) {
	if ctx.Err() != nil {
		return
	}
	if err := c.Announcer.Announce(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("announce failed", logx.String("text", text), logx.Err(err))
	}
}
