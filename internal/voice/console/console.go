// Package console binds the speech ports to a terminal: announcements are
// printed, typed lines stand in for recognized speech, and calls are printed
// as tel: links.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"voxremind/internal/voice"
	logx "voxremind/pkg/logx"
)

// Announcer prints spoken text as "[say] <text>".
type Announcer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewAnnouncer(w io.Writer) *Announcer { return &Announcer{w: w} }

func (a *Announcer) Announce(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := fmt.Fprintf(a.w, "[say] %s\n", text)
	return err
}

// Dialer prints the call intent as a tel: link.
type Dialer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDialer(w io.Writer) *Dialer { return &Dialer{w: w} }

func (d *Dialer) PlaceCall(ctx context.Context, phone string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "[call] tel:%s\n", strings.ReplaceAll(phone, " ", ""))
	return err
}

// Input reads lines from a reader. A line goes to the router's active
// session if one is listening, otherwise to the command handler.
type Input struct {
	r       io.Reader
	router  *voice.Router
	handler func(ctx context.Context, line string)
	log     logx.Logger
}

func NewInput(r io.Reader, router *voice.Router, handler func(ctx context.Context, line string), log logx.Logger) *Input {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Input{r: r, router: router, handler: handler, log: log}
}

// Run blocks until the reader ends or ctx is canceled. At end of input the
// router is failed so a pending confirmation resolves.
func (in *Input) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		scanErr <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			in.router.Fail(err)
			if err == io.EOF {
				in.log.Info("console input closed")
				return nil
			}
			return fmt.Errorf("read console: %w", err)
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if in.router.Feed(line) {
				in.log.Debug("console answer delivered", logx.String("text", line))
				continue
			}
			if in.handler != nil {
				in.handler(ctx, line)
			}
		}
	}
}
