package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voxremind/internal/chime"
	"voxremind/internal/command"
	"voxremind/internal/countdown"
	"voxremind/internal/reminder"
	"voxremind/internal/transcript"
	logx "voxremind/pkg/logx"
)

const defaultHistory = 10

func (a *App) commands() []command.Command {
	return []command.Command{
		{
			Route:       "add",
			Description: "add a daily task",
			Usage:       "/add HH:MM reminder <message> | /add HH:MM call <name> <phone>",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdAdd,
		},
		{
			Route:       "tasks",
			Aliases:     []string{"list", "ls"},
			Description: "list tasks with their next fire time",
			Handle:      a.cmdTasks,
		},
		{
			Route:       "history",
			Description: "recent firings and call outcomes",
			Usage:       "/history [n]",
			Handle:      a.cmdHistory,
		},
		{
			Route:       "time",
			Description: "say the current time",
			Handle:      a.cmdTime,
		},
		{
			Route:       "timer",
			Description: "start a countdown or show it",
			Usage:       "/timer 1h2m5s | /timer 5 | /timer 1:30",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdTimer,
		},
		{
			Route:       "timer pause",
			Aliases:     []string{"pause"},
			Description: "pause the countdown",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdTimerPause,
		},
		{
			Route:       "timer resume",
			Aliases:     []string{"resume"},
			Description: "resume the countdown",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdTimerResume,
		},
		{
			Route:       "timer stop",
			Aliases:     []string{"stop"},
			Description: "stop the countdown",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdTimerStop,
		},
		{
			Route:       "chime",
			Description: "time chime: on, off, hourly, minutely, now",
			Usage:       "/chime [on|off|hourly|minutely|now]",
			Access:      command.AccessOwnerOnly,
			Handle:      a.cmdChime,
		},
		{
			Route:       "status",
			Description: "scheduler status",
			Handle:      a.cmdStatus,
		},
	}
}

func (a *App) handleConsoleLine(ctx context.Context, line string) {
	a.cmds.Dispatch(ctx, command.Input{
		Source:  "console",
		Text:    line,
		Trusted: true,
		Reply:   a.consoleReply,
	})
}

func (a *App) consoleReply(_ context.Context, text string) error {
	_, err := fmt.Fprintln(a.out, text)
	return err
}

// handleTranscript turns free text into a task.
func (a *App) handleTranscript(ctx context.Context, req *command.Request) error {
	t, err := transcript.Parser{Contacts: a.contacts}.Parse(req.Text)
	if err != nil {
		var unknown *transcript.UnknownContactError
		switch {
		case errors.As(err, &unknown):
			return req.Reply(ctx, fmt.Sprintf("I don't know %s's number. Add it under contacts or say the number.", unknown.Name))
		case errors.Is(err, transcript.ErrNoTime):
			return req.Reply(ctx, "Sorry, I did not hear a time. Try \"remind me to stretch at 9:30\".")
		default:
			return req.Reply(ctx, "Sorry, I could not make a task from that: "+err.Error())
		}
	}
	return a.addTask(ctx, req, t)
}

func (a *App) addTask(ctx context.Context, req *command.Request, t reminder.Task) error {
	added, err := a.sched.AddTask(t)
	if err != nil {
		return err
	}
	req.Logger.Info("task added from "+req.Source, logx.String("task", added.ID))
	return req.Reply(ctx, "Added: "+added.Summary())
}

func (a *App) cmdAdd(ctx context.Context, req *command.Request) error {
	if len(req.Args) < 3 {
		return req.Reply(ctx, "usage: /add HH:MM reminder <message> | /add HH:MM call <name> <phone>")
	}
	at := req.Args[0]
	kind, err := reminder.ParseKind(req.Args[1])
	if err != nil {
		return err
	}
	rest := req.Args[2:]

	var t reminder.Task
	switch kind {
	case reminder.KindCall:
		name, phone := rest[0], strings.Join(rest[1:], " ")
		if phone == "" {
			p, ok := a.contacts.Lookup(name)
			if !ok {
				return req.Reply(ctx, fmt.Sprintf("I don't know %s's number. Use /add %s call %s <phone>.", name, at, name))
			}
			phone = p
		}
		t, err = reminder.NewCall(at, name, phone)
	default:
		t, err = reminder.NewReminder(at, strings.Join(rest, " "))
	}
	if err != nil {
		return err
	}
	return a.addTask(ctx, req, t)
}

func (a *App) cmdTasks(ctx context.Context, req *command.Request) error {
	tasks := a.sched.Tasks()
	if len(tasks) == 0 {
		return req.Reply(ctx, "No tasks yet. Try /add 09:00 reminder stretch")
	}
	now := a.clock.Now().In(a.loc)
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s):", len(tasks))
	for i, t := range tasks {
		next := t.NextFire(now)
		fmt.Fprintf(&b, "\n%d. %s (next %s, in %s)", i+1, t.Summary(), next.Format("Mon 15:04"), next.Sub(now).Round(time.Minute))
	}
	return req.Reply(ctx, b.String())
}

func (a *App) cmdHistory(ctx context.Context, req *command.Request) error {
	if a.store == nil {
		return req.Reply(ctx, "The journal is disabled (no storage configured).")
	}
	n := defaultHistory
	if len(req.Args) > 0 {
		v, err := strconv.Atoi(req.Args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid count %q", req.Args[0])
		}
		n = min(v, 100)
	}
	recs, err := a.store.RecentFirings(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return req.Reply(ctx, "Nothing fired yet.")
	}
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.At.In(a.loc).Format("Jan 02 15:04"))
		b.WriteString(" ")
		b.WriteString(r.Summary)
		if r.Outcome != "" {
			b.WriteString(" -> ")
			b.WriteString(r.Outcome)
		}
		if r.Error != "" {
			b.WriteString(" (error: ")
			b.WriteString(r.Error)
			b.WriteString(")")
		}
	}
	return req.Reply(ctx, b.String())
}

func (a *App) cmdTime(ctx context.Context, req *command.Request) error {
	text := chime.SpokenTime(a.clock.Now().In(a.loc))
	if err := a.speak.Announce(ctx, text); err != nil {
		req.Logger.Warn("time announce failed", logx.Err(err))
	}
	return req.Reply(ctx, text)
}

func (a *App) cmdTimer(ctx context.Context, req *command.Request) error {
	if len(req.Args) == 0 {
		left, state := a.countdown.Remaining()
		if state == countdown.Idle {
			return req.Reply(ctx, "No countdown running. Usage: /timer 5m")
		}
		return req.Reply(ctx, fmt.Sprintf("Countdown %s, %s left", state, countdown.FormatClock(left)))
	}
	d, err := countdown.ParseDuration(strings.Join(req.Args, ""))
	if err != nil {
		return err
	}
	// The countdown outlives this request.
	if err := a.countdown.Start(a.ctx(), d); err != nil {
		return err
	}
	return req.Reply(ctx, "Countdown started: "+countdown.FormatClock(d))
}

func (a *App) cmdTimerPause(ctx context.Context, req *command.Request) error {
	if err := a.countdown.Pause(ctx); err != nil {
		return err
	}
	left, _ := a.countdown.Remaining()
	return req.Reply(ctx, "Paused at "+countdown.FormatClock(left))
}

func (a *App) cmdTimerResume(ctx context.Context, req *command.Request) error {
	if err := a.countdown.Resume(a.ctx()); err != nil {
		return err
	}
	left, _ := a.countdown.Remaining()
	return req.Reply(ctx, "Resumed with "+countdown.FormatClock(left)+" left")
}

func (a *App) cmdTimerStop(ctx context.Context, req *command.Request) error {
	if err := a.countdown.Stop(ctx); err != nil {
		return err
	}
	return req.Reply(ctx, "Countdown stopped")
}

func (a *App) cmdChime(ctx context.Context, req *command.Request) error {
	arg := ""
	if len(req.Args) > 0 {
		arg = strings.ToLower(req.Args[0])
	}
	running, iv := a.chime.Running()
	switch arg {
	case "":
		if !running {
			return req.Reply(ctx, "Chime is off")
		}
		return req.Reply(ctx, "Chime is on ("+iv.String()+")")
	case "off":
		a.chime.Stop()
		return req.Reply(ctx, "Chime off")
	case "now":
		a.chime.Fire(ctx)
		return nil
	case "on":
		if !running {
			cfgIv, err := a.config().ChimeInterval()
			if err == nil {
				iv = cfgIv
			}
		}
	default:
		parsed, err := chime.ParseInterval(arg)
		if err != nil {
			return err
		}
		iv = parsed
	}
	if err := a.chime.Start(a.ctx(), iv); err != nil {
		return err
	}
	return req.Reply(ctx, "Chime on ("+iv.String()+")")
}

func (a *App) cmdStatus(ctx context.Context, req *command.Request) error {
	left, state := a.countdown.Remaining()
	chimeOn, iv := a.chime.Running()
	chimeText := "off"
	if chimeOn {
		chimeText = iv.String()
	}
	lines := []string{
		fmt.Sprintf("scheduler: running=%t tasks=%d", a.sched.Running(), len(a.sched.Tasks())),
		fmt.Sprintf("fired this minute: %s", strings.Join(a.sched.FiredThisMinute(), ", ")),
		fmt.Sprintf("countdown: %s %s", state, countdown.FormatClock(left)),
		"chime: " + chimeText,
		fmt.Sprintf("journal: %t, events dropped: %d", a.store != nil, a.bus.Dropped()),
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}
