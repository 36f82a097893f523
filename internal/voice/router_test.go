package voice

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestRouterDeliversToActiveSession(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	if r.Feed("hello") {
		t.Fatal("Feed without a session should report false")
	}

	rec, err := r.Listen(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	if _, err := r.Listen(context.Background(), "en-US"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Listen error = %v, want ErrBusy", err)
	}
	if !r.Feed("yes") {
		t.Fatal("Feed should reach the session")
	}
	if got := <-rec.Results(); got != "yes" {
		t.Fatalf("result = %q, want yes", got)
	}
	if r.Feed("next") {
		t.Fatal("a session receives only one line")
	}
	_ = rec.Close()
	_ = rec.Close()
}

func TestRouterCloseReleases(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	rec, _ := r.Listen(context.Background(), "")
	_ = rec.Close()
	if r.Listening() {
		t.Fatal("closed session still listening")
	}
	if r.Feed("late") {
		t.Fatal("closed session must not receive input")
	}
	if _, err := r.Listen(context.Background(), ""); err != nil {
		t.Fatalf("Listen after Close error: %v", err)
	}
}

func TestRouterFail(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	rec, _ := r.Listen(context.Background(), "")
	r.Fail(io.EOF)
	if err := <-rec.Errors(); !errors.Is(err, io.EOF) {
		t.Fatalf("session error = %v, want EOF", err)
	}
	if _, err := r.Listen(context.Background(), ""); !errors.Is(err, io.EOF) {
		t.Fatalf("Listen after Fail error = %v, want EOF", err)
	}
}
