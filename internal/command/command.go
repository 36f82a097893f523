// Package command routes "/cmd args" lines from any text channel (console,
// Telegram) to registered handlers. Lines without a leading slash go to the
// fallback handler.
package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"voxremind/internal/transport"
	logx "voxremind/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	// Route is a space-separated command path, e.g. "timer" or "timer pause".
	Route       string
	Aliases     []string // root-level aliases
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

// Input is one line of text from a channel.
type Input struct {
	Source string // "console", "telegram"
	Chat   transport.ChatTarget
	FromID int64
	Text   string
	// Trusted skips owner checks (local console).
	Trusted bool
	Reply   func(ctx context.Context, text string) error
}

type Request struct {
	Source  string
	Chat    transport.ChatTarget
	FromID  int64
	Path    []string
	Command string
	Args    []string
	Text    string
	ReqID   string
	Logger  logx.Logger

	reply func(ctx context.Context, text string) error
}

// Reply answers on the channel the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	if r == nil || r.reply == nil {
		return nil
	}
	return r.reply(ctx, text)
}

// ArgText is the arguments joined back with single spaces.
func (r *Request) ArgText() string { return strings.Join(r.Args, " ") }

type Manager struct {
	log logx.Logger

	mu       sync.RWMutex
	root     *cmdNode
	alias    map[string]*cmdNode
	cmds     []Command
	owners   []int64
	fallback HandlerFunc
}

func NewManager(log logx.Logger, owners []int64) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		log:    log,
		root:   newRoot(),
		alias:  map[string]*cmdNode{},
		owners: append([]int64(nil), owners...),
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// SetFallback installs the handler for free text.
func (m *Manager) SetFallback(h HandlerFunc) {
	m.mu.Lock()
	m.fallback = h
	m.mu.Unlock()
}

// SetRegistry replaces the command set. A help command is always added.
func (m *Manager) SetRegistry(cmds []Command) {
	helper := Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "show commands",
		Usage:       "/help [cmd]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText(req.Args))
		},
	}
	cmds = append(append([]Command(nil), cmds...), helper)

	root := newRoot()
	alias := map[string]*cmdNode{}
	kept := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		root.add(route, c)
		kept = append(kept, c)
		leaf := root.find(route)
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
		}
	}

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.cmds = kept
	m.mu.Unlock()
}

// Dispatch runs the handler for in on the caller's goroutine.
func (m *Manager) Dispatch(ctx context.Context, in Input) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return
	}
	rid := newReqID()
	reqLog := m.log.With(
		logx.String("rid", rid),
		logx.String("source", in.Source),
		logx.Int64("chat_id", in.Chat.ChatID),
		logx.Int64("from_id", in.FromID),
	)
	req := &Request{
		Source: in.Source,
		Chat:   in.Chat,
		FromID: in.FromID,
		Text:   text,
		ReqID:  rid,
		Logger: reqLog,
		reply:  in.Reply,
	}

	m.mu.RLock()
	root, aliasMap, fallback := m.root, m.alias, m.fallback
	owners := m.owners
	m.mu.RUnlock()

	if !strings.HasPrefix(text, "/") {
		if fallback == nil {
			_ = req.Reply(ctx, "unknown input. try /help")
			return
		}
		if !in.Trusted && !isOwner(in.FromID, owners) {
			_ = req.Reply(ctx, "unauthorized")
			return
		}
		req.Command = "text"
		_ = Chain(fallback, MWPanicRecover(m.log), MWRequestLog(m.log))(ctx, req)
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]
	// Menu shortcuts flatten routes: /timer_pause is /timer pause.
	if strings.Contains(word, "_") {
		if _, ok := root.child(word); !ok {
			segs := strings.Split(word, "_")
			word = segs[0]
			args = append(segs[1:], args...)
		}
	}

	var cur *cmdNode
	var path []string
	if leaf, ok := aliasMap[word]; ok && leaf != nil && leaf.cmd != nil {
		cur = leaf
		path = splitRoute(leaf.cmd.Route)
	} else {
		n, ok := root.child(word)
		if !ok {
			_ = req.Reply(ctx, "unknown command. try /help")
			return
		}
		cur = n
		path = []string{word}
		for len(args) > 0 {
			child, ok := cur.child(strings.ToLower(args[0]))
			if !ok {
				break
			}
			cur = child
			path = append(path, child.name)
			args = args[1:]
		}
	}

	if cur.cmd == nil {
		_ = req.Reply(ctx, m.helpText(path))
		return
	}
	cmd := *cur.cmd
	if cmd.Access == AccessOwnerOnly && !in.Trusted && !isOwner(in.FromID, owners) {
		_ = req.Reply(ctx, "unauthorized")
		return
	}
	req.Path = path
	req.Command = cmd.Route
	req.Args = args
	req.Logger = reqLog.With(logx.String("cmd", cmd.Route))

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)
	if err := final(ctx, req); err != nil {
		_ = req.Reply(ctx, "error: "+err.Error())
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
