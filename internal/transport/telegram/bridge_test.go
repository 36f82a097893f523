package telegram

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voxremind/internal/command"
	"voxremind/internal/transport"
	"voxremind/internal/voice"
	logx "voxremind/pkg/logx"
)

type sent struct {
	to   transport.ChatTarget
	text string
	opt  *transport.SendOptions
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sent
	edits    []string
	answered []string
	// answerErr is returned by AnswerCallback after recording the answer.
	answerErr error
}

func (f *fakeMessenger) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text, opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeMessenger) EditText(_ context.Context, _ transport.MessageRef, text string, _ *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, text)
	return f.answerErr
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

type fakeDispatcher struct {
	mu    sync.Mutex
	lines []string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, in command.Input) {
	d.mu.Lock()
	d.lines = append(d.lines, in.Text)
	d.mu.Unlock()
	_ = in.Reply(ctx, "ok")
}

const ownerID = 42

var ownerChat = transport.ChatTarget{ChatID: 1000}

func newTestBridge() (*Bridge, *fakeMessenger, *fakeDispatcher) {
	msg := &fakeMessenger{}
	d := &fakeDispatcher{}
	return NewBridge(msg, voice.NewRouter(), d, ownerChat, []int64{ownerID}, logx.Nop()), msg, d
}

func message(from int64, text string) transport.Update {
	return transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{ChatID: 555, FromID: from, Text: text}}
}

func callback(from int64, data string) transport.Update {
	return transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{ID: "cb", FromID: from, Data: data}}
}

func TestBridgePorts(t *testing.T) {
	t.Parallel()
	b, msg, _ := newTestBridge()
	ctx := context.Background()
	if err := b.Announce(ctx, "Reminder: stretch"); err != nil {
		t.Fatal(err)
	}
	if err := b.PlaceCall(ctx, "+1 555 0100"); err != nil {
		t.Fatal(err)
	}
	if err := b.SendLog(ctx, "[WARN] x"); err != nil {
		t.Fatal(err)
	}
	got := msg.texts()
	want := []string{"🔊 Reminder: stretch", "📞 tel:+15550100", "[WARN] x"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("sent = %q, want %q", got, want)
	}
	for _, s := range msg.sent {
		if s.to != ownerChat {
			t.Fatalf("sent to %+v, want owner chat", s.to)
		}
	}
}

func TestBridgeButtonAnswersSession(t *testing.T) {
	t.Parallel()
	b, msg, d := newTestBridge()
	ctx := context.Background()

	rec, err := b.Listen(ctx, "en-US")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if len(msg.sent) != 1 || len(msg.sent[0].opt.Buttons) != 1 {
		t.Fatalf("listening prompt not sent with buttons: %+v", msg.sent)
	}

	b.Handle(ctx, callback(7, callbackYes))
	b.Handle(ctx, callback(ownerID, callbackYes))
	select {
	case got := <-rec.Results():
		if got != "yes" {
			t.Fatalf("result = %q, want yes", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	_ = rec.Close()
	_ = rec.Close()

	if strings.Join(msg.answered, ",") != "unauthorized,yes" {
		t.Fatalf("callback answers = %q", msg.answered)
	}
	if len(msg.edits) != 1 {
		t.Fatalf("prompt edits = %d, want 1", len(msg.edits))
	}
	b.Handle(ctx, callback(ownerID, callbackNo))
	if msg.answered[len(msg.answered)-1] != "nothing to answer" {
		t.Fatalf("late callback answer = %q", msg.answered[len(msg.answered)-1])
	}
	if len(d.lines) != 0 {
		t.Fatalf("callbacks reached the dispatcher: %v", d.lines)
	}
}

func TestBridgeMessageRouting(t *testing.T) {
	t.Parallel()
	b, msg, d := newTestBridge()
	ctx := context.Background()

	b.Handle(ctx, message(ownerID, "/tasks"))
	if len(d.lines) != 1 || d.lines[0] != "/tasks" {
		t.Fatalf("dispatched = %v", d.lines)
	}
	if last := msg.sent[len(msg.sent)-1]; last.text != "ok" || last.to.ChatID != 555 {
		t.Fatalf("reply = %+v, want ok to the sending chat", last)
	}

	rec, err := b.Listen(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	// Commands and strangers do not answer a pending question.
	b.Handle(ctx, message(ownerID, "/help"))
	b.Handle(ctx, message(7, "yes"))
	b.Handle(ctx, message(ownerID, "no thanks"))
	if got := <-rec.Results(); got != "no thanks" {
		t.Fatalf("result = %q", got)
	}
	if strings.Join(d.lines, "|") != "/tasks|/help|yes" {
		t.Fatalf("dispatched = %v", d.lines)
	}
}

func TestBridgeRun(t *testing.T) {
	t.Parallel()
	b, _, d := newTestBridge()
	updates := make(chan transport.Update, 2)
	updates <- message(ownerID, "/tasks")
	close(updates)
	if err := b.Run(context.Background(), updates); err != nil {
		t.Fatal(err)
	}
	if len(d.lines) != 1 {
		t.Fatalf("dispatched = %v", d.lines)
	}
}

func TestBridgeLogsFailedCallbackAnswers(t *testing.T) {
	t.Parallel()
	msg := &fakeMessenger{answerErr: errors.New("query is too old")}
	var logs bytes.Buffer
	b := NewBridge(msg, voice.NewRouter(), &fakeDispatcher{}, ownerChat, []int64{ownerID}, logx.NewWriter(&logs, "debug"))
	ctx := context.Background()

	rec, err := b.Listen(ctx, "en-US")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer rec.Close()

	b.Handle(ctx, callback(7, callbackYes))
	b.Handle(ctx, callback(ownerID, "bogus"))
	b.Handle(ctx, callback(ownerID, callbackYes))
	select {
	case got := <-rec.Results():
		if got != "yes" {
			t.Fatalf("result = %q, want yes", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("answer was not delivered after a failed callback reply")
	}

	out := logs.String()
	if n := strings.Count(out, "answer callback failed"); n != 3 {
		t.Fatalf("logged %d failed answers, want 3:\n%s", n, out)
	}
	if !strings.Contains(out, "query is too old") {
		t.Fatalf("log missing the messenger error:\n%s", out)
	}
}
