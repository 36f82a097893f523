package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	"voxremind/internal/command"
	"voxremind/internal/reminder"
	"voxremind/internal/transport"
	"voxremind/internal/voice"
	logx "voxremind/pkg/logx"
)

const (
	callbackYes = "voice:yes"
	callbackNo  = "voice:no"

	editTimeout = 5 * time.Second
)

// Messenger is the subset of the adapter the bridge needs.
type Messenger interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Dispatcher handles lines that are not answers to a pending question.
type Dispatcher interface {
	Dispatch(ctx context.Context, in command.Input)
}

// Bridge speaks to the owner chat and turns owner replies into recognized
// speech. It implements reminder.Announcer, reminder.Dialer,
// reminder.VoiceInput and logx.Sender.
type Bridge struct {
	msg      Messenger
	router   *voice.Router
	commands Dispatcher
	log      logx.Logger

	mu     sync.RWMutex
	chat   transport.ChatTarget
	owners []int64
	prompt transport.MessageRef
}

var (
	_ reminder.Announcer  = (*Bridge)(nil)
	_ reminder.Dialer     = (*Bridge)(nil)
	_ reminder.VoiceInput = (*Bridge)(nil)
	_ logx.Sender         = (*Bridge)(nil)
)

func NewBridge(msg Messenger, router *voice.Router, commands Dispatcher, chat transport.ChatTarget, owners []int64, log logx.Logger) *Bridge {
	if log.IsZero() {
		log = logx.Nop()
	}
	if router == nil {
		router = voice.NewRouter()
	}
	return &Bridge{
		msg:      msg,
		router:   router,
		commands: commands,
		log:      log,
		chat:     chat,
		owners:   append([]int64(nil), owners...),
	}
}

// SetOwners updates the owner chat and ids after a config reload.
func (b *Bridge) SetOwners(chat transport.ChatTarget, owners []int64) {
	cp := append([]int64(nil), owners...)
	b.mu.Lock()
	b.chat = chat
	b.owners = cp
	b.mu.Unlock()
}

func (b *Bridge) target() transport.ChatTarget {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chat
}

func (b *Bridge) isOwner(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.owners {
		if o == id {
			return true
		}
	}
	return false
}

func (b *Bridge) Announce(ctx context.Context, text string) error {
	_, err := b.msg.SendText(ctx, b.target(), "🔊 "+text, nil)
	return err
}

func (b *Bridge) PlaceCall(ctx context.Context, phone string) error {
	number := strings.ReplaceAll(phone, " ", "")
	_, err := b.msg.SendText(ctx, b.target(), "📞 tel:"+number, nil)
	return err
}

func (b *Bridge) SendLog(ctx context.Context, text string) error {
	_, err := b.msg.SendText(ctx, b.target(), text, &transport.SendOptions{DisablePreview: true})
	return err
}

// Listen opens a session and offers Yes/No buttons; a typed reply works too.
func (b *Bridge) Listen(ctx context.Context, locale string) (reminder.Recognition, error) {
	rec, err := b.router.Listen(ctx, locale)
	if err != nil {
		return nil, err
	}
	ref, err := b.msg.SendText(ctx, b.target(), "🎙 Listening…", &transport.SendOptions{
		Buttons: [][]transport.Button{{
			{Text: "Yes", Data: callbackYes},
			{Text: "No", Data: callbackNo},
		}},
	})
	if err != nil {
		_ = rec.Close()
		return nil, err
	}
	b.mu.Lock()
	b.prompt = ref
	b.mu.Unlock()
	return &promptSession{Recognition: rec, bridge: b}, nil
}

// promptSession clears the Yes/No keyboard when the session closes.
type promptSession struct {
	reminder.Recognition
	bridge *Bridge
	once   sync.Once
}

func (s *promptSession) Close() error {
	err := s.Recognition.Close()
	s.once.Do(s.bridge.clearPrompt)
	return err
}

func (b *Bridge) clearPrompt() {
	b.mu.Lock()
	ref := b.prompt
	b.prompt = transport.MessageRef{}
	b.mu.Unlock()
	if ref.MessageID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), editTimeout)
	defer cancel()
	if err := b.msg.EditText(ctx, ref, "🎙 Done listening.", nil); err != nil {
		b.log.Debug("clear listening prompt failed", logx.Err(err))
	}
}

// Run consumes adapter updates until ctx ends or updates is closed.
func (b *Bridge) Run(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, up)
		}
	}
}

// Handle routes one update: owner answers feed the pending session,
// everything else goes to the command dispatcher.
func (b *Bridge) Handle(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateCallback:
		b.handleCallback(ctx, up.Callback)
	case transport.UpdateMessage:
		b.handleMessage(ctx, up.Message)
	}
}

func (b *Bridge) handleCallback(ctx context.Context, cb *transport.Callback) {
	if cb == nil {
		return
	}
	var answer string
	switch cb.Data {
	case callbackYes:
		answer = "yes"
	case callbackNo:
		answer = "no"
	default:
		b.answerCallback(ctx, cb.ID, "")
		return
	}
	if !b.isOwner(cb.FromID) {
		b.answerCallback(ctx, cb.ID, "unauthorized")
		return
	}
	if !b.router.Feed(answer) {
		b.answerCallback(ctx, cb.ID, "nothing to answer")
		return
	}
	b.answerCallback(ctx, cb.ID, answer)
}

func (b *Bridge) answerCallback(ctx context.Context, id, text string) {
	if err := b.msg.AnswerCallback(ctx, id, text); err != nil {
		b.log.Debug("answer callback failed", logx.String("callback", id), logx.String("text", text), logx.Err(err))
	}
}

func (b *Bridge) handleMessage(ctx context.Context, m *transport.Message) {
	if m == nil || strings.TrimSpace(m.Text) == "" {
		return
	}
	text := strings.TrimSpace(m.Text)
	if b.isOwner(m.FromID) && !strings.HasPrefix(text, "/") && b.router.Feed(text) {
		b.log.Debug("chat answer delivered", logx.String("text", text))
		return
	}
	if b.commands == nil {
		return
	}
	chat := transport.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	b.commands.Dispatch(ctx, command.Input{
		Source: "telegram",
		Chat:   chat,
		FromID: m.FromID,
		Text:   text,
		Reply: func(ctx context.Context, reply string) error {
			_, err := b.msg.SendText(ctx, chat, reply, nil)
			return err
		},
	})
}
